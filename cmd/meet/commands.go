package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cwrk-planet/meet-service/internal/domain"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func cmdCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("create")
	maxSize := fs.Int("max", 0, "room capacity")
	pos, err := parseArgs(fs, args)
	if err != nil || len(pos) != 2 || *maxSize < 0 {
		return errUsage
	}

	room, url, err := a.reg.CreateRoom(ctx, pos[0], pos[1], *maxSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Room created: %s\n", room.ID)
	fmt.Fprintf(a.stdout, "Join URL: %s\n", url)
	return nil
}

func cmdRooms(_ context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}

	rooms := a.reg.ActiveRooms()
	if len(rooms) == 0 {
		fmt.Fprintln(a.stdout, "No active rooms")
		return nil
	}

	table := tablewriter.NewWriter(a.stdout)
	table.SetHeader([]string{"ID", "Name", "Host", "Participants", "Created"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, r := range rooms {
		table.Append([]string{
			r.ID,
			r.Name,
			r.Host,
			fmt.Sprintf("%d/%d", len(r.Participants), r.MaxSize),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	roomID, user := args[0], args[1]

	if _, err := a.reg.JoinRoom(ctx, roomID, user); err != nil {
		if !isDomainErr(err) {
			return err
		}
		return a.fail(err, "Failed to join room %s\n", roomID)
	}
	fmt.Fprintf(a.stdout, "User %s joined room %s\n", user, roomID)
	return nil
}

func cmdLeave(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	roomID, user := args[0], args[1]

	if _, err := a.reg.LeaveRoom(ctx, roomID, user); err != nil {
		if !isDomainErr(err) {
			return err
		}
		return a.fail(err, "Failed to leave room %s\n", roomID)
	}
	fmt.Fprintf(a.stdout, "User %s left room %s\n", user, roomID)
	return nil
}

func cmdLeaveSession(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	s, err := a.reg.LeaveSession(ctx, args[0])
	if err != nil {
		if !isDomainErr(err) {
			return err
		}
		return a.fail(err, "Failed to close session %s\n", args[0])
	}
	fmt.Fprintf(a.stdout, "User %s left room %s\n", s.User, s.RoomID)
	return nil
}

func cmdMedia(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("media")
	camera := fs.String("camera", "", "on|off")
	mic := fs.String("mic", "", "on|off")
	pos, err := parseArgs(fs, args)
	if err != nil || len(pos) != 2 {
		return errUsage
	}

	var upd domain.MediaUpdate
	if upd.Camera, err = parseSwitch(*camera); err != nil {
		return err
	}
	if upd.Mic, err = parseSwitch(*mic); err != nil {
		return err
	}
	if upd.Empty() {
		return errUsage
	}

	s, err := a.reg.ToggleMedia(ctx, pos[0], pos[1], upd)
	if err != nil {
		if !isDomainErr(err) {
			return err
		}
		return a.fail(err, "Failed to update media in room %s\n", pos[0])
	}
	fmt.Fprintf(a.stdout, "User %s in room %s: camera %s, mic %s\n",
		s.User, s.RoomID, onOff(s.CameraOn), onOff(s.MicOn))
	return nil
}

func cmdEnd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("end")
	recording := fs.String("recording", "", "recording URL")
	pos, err := parseArgs(fs, args)
	if err != nil || len(pos) != 1 {
		return errUsage
	}

	room, err := a.reg.EndRoom(ctx, pos[0], *recording)
	if err != nil {
		if !isDomainErr(err) {
			return err
		}
		return a.fail(err, "Failed to end room %s\n", pos[0])
	}
	fmt.Fprintf(a.stdout, "Room %s ended after %d min\n", room.ID, lo.FromPtr(room.DurationMinutes()))
	return nil
}

func cmdGet(_ context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	snap, ok := a.reg.GetRoom(args[0])
	if !ok {
		fmt.Fprintf(a.stdout, "Room %s not found\n", args[0])
		return errSilent
	}
	return printJSON(a, snap)
}

func cmdHistory(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("history")
	n := fs.Int("n", a.cfg.Meet.HistoryLimit, "max rooms to list")
	pos, err := parseArgs(fs, args)
	if err != nil || len(pos) != 1 {
		return errUsage
	}
	return printJSON(a, a.reg.UserHistory(pos[0], *n))
}

func cmdStats(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	stats, err := a.reg.RoomStats(ctx, args[0])
	if err != nil {
		if !isDomainErr(err) {
			return err
		}
		fmt.Fprintf(a.stdout, "Room %s not found\n", args[0])
		return errSilent
	}
	return printJSON(a, stats)
}

// errSilent exits 1 after the command already explained the failure.
var errSilent = errors.New("command failed")

// fail prints the user-facing line on stdout and the cause on stderr.
func (a *app) fail(cause error, format string, args ...any) error {
	fmt.Fprintf(a.stdout, format, args...)
	fmt.Fprintf(a.stderr, "reason: %v\n", cause)
	return errSilent
}

func isDomainErr(err error) bool {
	return errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrRoomFull) ||
		errors.Is(err, domain.ErrRoomEnded) ||
		errors.Is(err, domain.ErrNotInRoom) ||
		errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrInvalidInput)
}

func parseSwitch(v string) (*bool, error) {
	switch v {
	case "":
		return nil, nil
	case "on", "true", "1":
		return lo.ToPtr(true), nil
	case "off", "false", "0":
		return lo.ToPtr(false), nil
	default:
		return nil, fmt.Errorf("%w: expected on|off, got %s", errUsage, strconv.Quote(v))
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printJSON(a *app, v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
