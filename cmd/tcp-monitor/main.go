package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"redstring/pkg/models"
)

func main() {
	addr := "127.0.0.1:9090"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	fmt.Println("Connected to progress feed:", addr)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var u models.ProgressUpdate
		if err := json.Unmarshal(sc.Bytes(), &u); err != nil {
			fmt.Println("bad update:", sc.Text())
			continue
		}
		state := "reading"
		if u.Completed {
			state = "completed"
		}
		fmt.Printf("%s user=%s section=%s page=%d %s\n",
			time.Unix(u.Timestamp, 0).Format(time.TimeOnly), u.UserID, u.SectionID, u.CurrentPageNumber, state)
	}
	fmt.Println("Disconnected.")
}
