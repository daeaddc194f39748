package tcpsync

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redstring/pkg/models"
)

func TestBroadcastReachesClients(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	updates := make(chan models.ProgressUpdate, 1)
	srv := New("", updates, nil)
	go srv.Serve(ln)
	defer srv.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 10*time.Millisecond)

	updates <- models.ProgressUpdate{UserID: "u1", SectionID: "s1", CurrentPageNumber: 3, Completed: true}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var got models.ProgressUpdate
	require.NoError(t, json.Unmarshal(line, &got))
	assert.Equal(t, "s1", got.SectionID)
	assert.True(t, got.Completed)
}
