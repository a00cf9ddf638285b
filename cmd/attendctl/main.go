package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"campusattend/internal/apiclient"
	"campusattend/internal/app"
	"campusattend/internal/checkin"
	"campusattend/internal/config"
	"campusattend/internal/credential"
	"campusattend/internal/endpoint"
	"campusattend/internal/events"
	"campusattend/internal/logger"
	"campusattend/internal/model"
)

const usage = `usage: attendctl <command> [flags]

account:   login, logout, whoami, me
student:   checkin, enroll-photo, history
lecturer:  sessions, start-session, end-session, qr, refresh-qr, live, mark
admin:     users, import-users, low-attendance`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:]); err != nil {
		if detail := apiclient.Detail(err); detail != "" {
			fmt.Fprintln(os.Stderr, "Error:", detail)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		if errors.Is(err, apiclient.ErrAuthFailure) {
			fmt.Fprintln(os.Stderr, "Your session has ended. Run `attendctl login` again.")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, log *slog.Logger, cmd string, args []string) error {
	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.WatchTeardowns(ctx, func(e events.Event) {
		log.Warn("signed out by server", slog.String("reason", e.Reason), slog.String("event_id", e.ID))
	}); err != nil {
		return err
	}

	client := rt.Factory.Authenticated()
	auth := endpoint.NewAuth(client, rt.Session)
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)

	switch cmd {
	case "login":
		email := fs.String("email", "", "account email")
		password := fs.String("password", os.Getenv("ATTEND_PASSWORD"), "password (or ATTEND_PASSWORD)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *email == "" || *password == "" {
			return errors.New("--email and --password are required")
		}
		c, err := auth.Login(ctx, *email, *password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s (%s)\n", c.User.Email, c.User.Role)
		return nil

	case "logout":
		if err := auth.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil

	case "whoami":
		c, _, ok, err := rt.Session.Credential(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Not signed in")
			return nil
		}
		out := map[string]any{"user": c.User}
		if claims, err := credential.Inspect(c.Token); err == nil {
			out["expires_at"] = claims.ExpiresAt
			out["expired"] = claims.Expired(time.Now())
		}
		return printJSON(out)

	case "me":
		return printResult(auth.Me(ctx))

	case "checkin":
		return runCheckIn(ctx, rt, fs, args)

	case "enroll-photo":
		image := fs.String("image", "", "photo path")
		angle := fs.String("angle", "front", "front|left|right")
		if err := fs.Parse(args); err != nil {
			return err
		}
		f, err := os.Open(*image)
		if err != nil {
			return err
		}
		defer f.Close()
		return printResult(endpoint.NewStudent(client).UploadFacePhoto(ctx, filepath.Base(*image), f, endpoint.FaceAngle(*angle)))

	case "history":
		days := fs.Int("days", 30, "look-back window")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return printResult(endpoint.NewStudent(client).AttendanceHistory(ctx, *days))

	case "sessions":
		from := fs.String("from", "", "YYYY-MM-DD")
		to := fs.String("to", "", "YYYY-MM-DD")
		status := fs.String("status", "", "scheduled|in_progress|completed|cancelled")
		if err := fs.Parse(args); err != nil {
			return err
		}
		filter := endpoint.SessionFilter{DateFrom: *from, DateTo: *to, Status: model.SessionStatus(*status)}
		return printResult(endpoint.NewLecturer(client).Sessions(ctx, filter))

	case "start-session", "end-session", "qr", "refresh-qr", "live":
		session := fs.String("session", "", "session id")
		markAbsent := fs.Bool("mark-absent", true, "end-session: mark students without a record absent")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *session == "" {
			return errors.New("--session is required")
		}
		att := endpoint.NewAttendance(client)
		switch cmd {
		case "start-session":
			return printResult(att.StartSession(ctx, *session))
		case "end-session":
			return printResult(att.EndSession(ctx, *session, *markAbsent))
		case "qr":
			return printResult(att.QRCode(ctx, *session))
		case "refresh-qr":
			return printResult(att.RefreshQR(ctx, *session))
		default:
			return printResult(att.LiveAttendance(ctx, *session))
		}

	case "mark":
		session := fs.String("session", "", "session id")
		student := fs.Int64("student", 0, "student id")
		status := fs.String("status", "", "present|late|absent|excused")
		reason := fs.String("reason", "", "optional reason")
		if err := fs.Parse(args); err != nil {
			return err
		}
		m := endpoint.ManualMark{StudentID: *student, Status: model.AttendanceStatus(*status), Reason: *reason}
		return printResult(endpoint.NewAttendance(client).ManualMark(ctx, *session, m))

	case "users":
		role := fs.String("role", "", "student|lecturer|admin")
		status := fs.String("status", "", "account status")
		search := fs.String("search", "", "name or email")
		skip := fs.Int("skip", 0, "offset")
		limit := fs.Int("limit", 50, "page size")
		if err := fs.Parse(args); err != nil {
			return err
		}
		filter := endpoint.UserFilter{Role: credential.Role(*role), Status: *status, Search: *search, Page: model.Page{Skip: *skip, Limit: *limit}}
		return printResult(endpoint.NewAdmin(client).Users(ctx, filter))

	case "import-users":
		file := fs.String("file", "", "CSV path")
		role := fs.String("role", "student", "role for every imported row")
		sendEmails := fs.Bool("send-emails", false, "send welcome emails")
		if err := fs.Parse(args); err != nil {
			return err
		}
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		in := endpoint.BulkImport{Filename: filepath.Base(*file), CSV: f, Role: credential.Role(*role), SendEmails: *sendEmails}
		return printResult(endpoint.NewAdmin(client).BulkImport(ctx, in))

	case "low-attendance":
		threshold := fs.Float64("threshold", 0, "percentage threshold")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return printResult(endpoint.NewAdmin(client).LowAttendanceReport(ctx, *threshold))
	}

	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func runCheckIn(ctx context.Context, rt *app.Runtime, fs *flag.FlagSet, args []string) error {
	actorFlag := fs.String("actor", "authenticated", "authenticated|kiosk")
	modeFlag := fs.String("mode", "qr", "face|qr")
	session := fs.String("session", "", "session id")
	token := fs.String("token", "", "QR token (authenticated qr)")
	lat := fs.String("lat", "", "latitude (authenticated qr, optional)")
	lon := fs.String("lon", "", "longitude (authenticated qr, optional)")
	student := fs.String("student", "", "student ID number (kiosk qr)")
	image := fs.String("image", "", "face capture path (face)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	actor, err := checkin.ParseActor(*actorFlag)
	if err != nil {
		return err
	}
	mode, err := checkin.ParseVerification(*modeFlag)
	if err != nil {
		return err
	}
	in := checkin.Input{SessionID: *session, QRToken: *token, StudentIDNumber: *student}
	if in.Latitude, err = parseCoord(*lat); err != nil {
		return err
	}
	if in.Longitude, err = parseCoord(*lon); err != nil {
		return err
	}
	if *image != "" {
		f, err := os.Open(*image)
		if err != nil {
			return err
		}
		defer f.Close()
		in.Image = f
		in.Filename = filepath.Base(*image)
	}

	svc := checkin.NewService(rt.Factory.Authenticated(), rt.Factory.Kiosk(), rt.Metrics, rt.Log)
	return printResult(svc.CheckIn(ctx, actor, mode, in))
}

func parseCoord(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid coordinate %q", s)
	}
	return &v, nil
}

func printResult[T any](v T, err error) error {
	if err != nil {
		return err
	}
	return printJSON(v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
