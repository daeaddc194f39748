package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"redstring/internal/content"
	"redstring/internal/progress"
	"redstring/internal/user"
	"redstring/pkg/database"
	"redstring/pkg/models"
)

func TestProgressService(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	u, err := user.CreateUser(ctx, db, "reader", "reader123", "")
	require.NoError(t, err)
	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "Winter"})
	require.NoError(t, err)
	sec, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "Snow"})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	feed := make(chan models.ProgressUpdate, 4)
	Register(gs, NewServer(progress.NewTracker(db, progress.Overwrite), progress.NewFanout(db, nil, feed), nil))
	go gs.Serve(lis)
	defer gs.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	c := NewClient(conn)

	last, err := c.LastRead(ctx, &LastReadRequest{UserID: u.ID})
	require.NoError(t, err)
	assert.Nil(t, last.Progress)

	p, err := c.SaveProgress(ctx, &models.ProgressWrite{UserID: u.ID, SectionID: sec.ID, CurrentPageNumber: 1, Completed: true})
	require.NoError(t, err)
	assert.True(t, p.Completed)

	select {
	case u := <-feed:
		assert.Equal(t, u.UserID, p.UserID)
		assert.Equal(t, sec.ID, u.SectionID)
		assert.Equal(t, ch.ID, u.ChapterID)
		assert.True(t, u.Completed)
	default:
		t.Fatal("save over grpc did not reach the feed")
	}

	cp, err := c.ChapterProgress(ctx, &ChapterProgressRequest{UserID: u.ID, ChapterID: ch.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ChapterProgress{Completed: true, TotalSections: 1, CompletedSections: 1}, *cp)

	_, err = c.ChapterProgress(ctx, &ChapterProgressRequest{UserID: u.ID, ChapterID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	require.NoError(t, user.Delete(ctx, db, u.ID))
	_, err = c.SaveProgress(ctx, &models.ProgressWrite{UserID: u.ID, SectionID: sec.ID, CurrentPageNumber: 1})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
