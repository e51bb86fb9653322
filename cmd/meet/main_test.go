package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/cwrk-planet/meet-service/internal/domain"

	"github.com/stretchr/testify/require"
)

type cli struct {
	t   *testing.T
	cfg string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := "storage:\n  driver: sqlite\n  sqlitePath: " + filepath.Join(dir, "meet.db") + "\n" +
		"meet:\n  baseURL: https://meet.test\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return &cli{t: t, cfg: cfg}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config", c.cfg}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

var roomIDRe = regexp.MustCompile(`Room created: (\S+)`)

func (c *cli) create(args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(append([]string{"create"}, args...)...)
	require.Equal(c.t, 0, code, errOut)
	m := roomIDRe.FindStringSubmatch(out)
	require.Len(c.t, m, 2, out)
	require.Contains(c.t, out, "Join URL: https://meet.test/r/"+m[1])
	return m[1]
}

func TestCLI_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	require.Contains(t, stderr.String(), "usage: meet")

	stderr.Reset()
	require.Equal(t, 2, run(context.Background(), []string{"explode"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), `unknown command "explode"`)
}

func TestCLI_CreateJoinAcrossInvocations(t *testing.T) {
	req := require.New(t)
	c := newCLI(t)

	id := c.create("Standup", "alice", "--max", "2")

	code, out, _ := c.run("join", id, "bob")
	req.Equal(0, code)
	req.Equal("User bob joined room "+id+"\n", out)

	code, _, _ = c.run("join", id, "carol")
	req.Equal(0, code)

	// state survives between processes, so the third join sees a full room
	code, out, errOut := c.run("join", id, "dave")
	req.Equal(1, code)
	req.Equal("Failed to join room "+id+"\n", out)
	req.Contains(errOut, domain.ErrRoomFull.Error())

	code, out, _ = c.run("rooms")
	req.Equal(0, code)
	req.Contains(out, id)
	req.Contains(out, "2/2")
}

func TestCLI_MediaEndStatsHistory(t *testing.T) {
	req := require.New(t)
	c := newCLI(t)
	id := c.create("--max", "5", "Retro", "alice")

	code, _, _ := c.run("join", id, "bob")
	req.Equal(0, code)

	code, out, _ := c.run("media", id, "bob", "--camera", "off")
	req.Equal(0, code)
	req.Contains(out, "camera off, mic on")

	code, _, _ = c.run("media", id, "bob", "--camera", "sideways")
	req.Equal(2, code)

	code, out, _ = c.run("get", id)
	req.Equal(0, code)
	var snap domain.RoomSnapshot
	req.NoError(json.Unmarshal([]byte(out), &snap))
	req.Equal(5, snap.MaxSize)
	req.Len(snap.Media, 1)
	req.False(snap.Media[0].CameraOn)

	code, out, _ = c.run("end", id, "--recording", "https://rec.test/1")
	req.Equal(0, code)
	req.Contains(out, "Room "+id+" ended")

	code, out, _ = c.run("rooms")
	req.Equal(0, code)
	req.Equal("No active rooms\n", out)

	code, out, _ = c.run("stats", id)
	req.Equal(0, code)
	var stats domain.RoomStats
	req.NoError(json.Unmarshal([]byte(out), &stats))
	req.Equal(1, stats.PeakParticipants)
	req.Equal(1, stats.JoinEvents)

	code, out, _ = c.run("history", "bob", "--n", "5")
	req.Equal(0, code)
	var hist []domain.RoomSnapshot
	req.NoError(json.Unmarshal([]byte(out), &hist))
	req.Len(hist, 1)
	req.Equal(id, hist[0].ID)
	req.Equal("https://rec.test/1", hist[0].RecordingURL)
}

func TestCLI_LeaveAndMissingRoom(t *testing.T) {
	req := require.New(t)
	c := newCLI(t)
	id := c.create("Sync", "alice")

	code, _, _ := c.run("join", id, "bob")
	req.Equal(0, code)
	code, out, _ := c.run("leave", id, "bob")
	req.Equal(0, code)
	req.Equal("User bob left room "+id+"\n", out)

	code, out, _ = c.run("leave", id, "bob")
	req.Equal(1, code)
	req.Equal("Failed to leave room "+id+"\n", out)

	code, out, _ = c.run("get", "missing")
	req.Equal(1, code)
	req.Equal("Room missing not found\n", out)

	code, _, _ = c.run("stats", "missing")
	req.Equal(1, code)

	code, _, _ = c.run("create", "only-name")
	req.Equal(2, code)
}
