package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"redstring/internal/apiclient"
	"redstring/internal/navigator"
	"redstring/pkg/logger"
	"redstring/pkg/models"
)

// Terminal reader: logs in, resumes the last section (or starts at the
// first one) and pages through it with n / p / l / q.
func main() {
	server := flag.String("server", "http://127.0.0.1:8080", "API base URL")
	username := flag.String("user", "reader", "username")
	password := flag.String("password", "reader123", "password")
	idle := flag.Duration("idle", 15*time.Minute, "log out after this much inactivity")
	verbose := flag.Bool("v", false, "log progress writes")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New("dev", level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	client := apiclient.New(*server, nil, *idle)
	session, err := client.Login(ctx, *username, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "login:", err)
		os.Exit(1)
	}
	defer client.Logout()
	fmt.Printf("Signed in as %s\n", session.Username)

	sectionID, err := startSection(ctx, client)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	reader := navigator.New(session, client, client, log)
	if err := open(ctx, client, reader, sectionID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()

	for {
		show(reader)
		select {
		case <-session.Done():
			reader.Leave(ctx)
			fmt.Println("Session ended:", session.Err())
			return
		case cmd, ok := <-lines:
			if !ok {
				reader.Leave(ctx)
				return
			}
			switch cmd {
			case "n", "":
				step := reader.Next(ctx)
				switch step.Kind {
				case navigator.StepSection:
					if err := open(ctx, client, reader, step.SectionID); err != nil {
						fmt.Println(err)
					}
				case navigator.StepExit:
					reader.Leave(ctx)
					fmt.Println("End of the chapter.")
					return
				}
			case "p":
				reader.Prev(ctx)
			case "l":
				toggleLike(ctx, client, reader.Section().ID)
			case "q":
				reader.Leave(ctx)
				return
			default:
				fmt.Println("n = next, p = previous, l = like, q = quit")
			}
		}
	}
}

func startSection(ctx context.Context, client *apiclient.Client) (string, error) {
	last, err := client.LastRead(ctx)
	if err != nil {
		return "", err
	}
	if last != nil {
		return last.SectionID, nil
	}
	chapters, err := client.Chapters(ctx)
	if err != nil {
		return "", err
	}
	for _, ch := range chapters {
		sections, err := client.ChapterSections(ctx, ch.ID)
		if err != nil {
			return "", err
		}
		if len(sections) > 0 {
			return sections[0].ID, nil
		}
	}
	return "", errors.New("nothing to read yet")
}

func open(ctx context.Context, client *apiclient.Client, reader *navigator.Reader, sectionID string) error {
	sec, err := client.Section(ctx, sectionID)
	if err != nil {
		return err
	}
	pages, err := client.Pages(ctx, sectionID)
	if err != nil {
		return err
	}
	siblings, err := client.ChapterSections(ctx, sec.ChapterID)
	if err != nil {
		return err
	}
	saved, err := client.Progress(ctx, sectionID)
	if err != nil {
		return err
	}
	reader.Open(ctx, navigator.SectionView{Section: sec, Pages: pages, Siblings: siblings, Saved: saved})

	if cp, err := client.ChapterProgress(ctx, sec.ChapterID); err == nil {
		fmt.Printf("\n== %s  (%d/%d sections read)\n", sec.Title, cp.CompletedSections, cp.TotalSections)
	}
	return nil
}

func show(reader *navigator.Reader) {
	page := reader.CurrentPage()
	if page == nil {
		fmt.Print("\n(this section has no pages yet)\n> ")
		return
	}
	fmt.Printf("\n-- page %d of %d --\n%s\n> ", reader.PageIndex()+1, reader.TotalPages(), content(page))
}

func content(p *models.Page) string {
	if strings.TrimSpace(p.Content) == "" {
		return "(empty page)"
	}
	return p.Content
}

func toggleLike(ctx context.Context, client *apiclient.Client, sectionID string) {
	liked, err := client.IsLiked(ctx, sectionID)
	if err != nil {
		fmt.Println("like:", err)
		return
	}
	if liked {
		err = client.Unlike(ctx, sectionID)
	} else {
		err = client.Like(ctx, sectionID)
	}
	if err != nil {
		fmt.Println("like:", err)
		return
	}
	fmt.Println(map[bool]string{true: "Unliked.", false: "Liked."}[liked])
}
