package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kochabx/cardiac/app"
	"github.com/kochabx/cardiac/chart"
	"github.com/kochabx/cardiac/config"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/monitor"
	"github.com/kochabx/cardiac/persistence"
	"github.com/kochabx/cardiac/readings"
	"github.com/kochabx/cardiac/session"
	"github.com/kochabx/cardiac/stream"
	xhttp "github.com/kochabx/cardiac/transport/http"
)

// env 单条命令的执行环境
type env struct {
	*deps
	flags *flags
	conf  *config.Config
	out   io.Writer
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"login":    login,
	"logout":   logout,
	"status":   status,
	"save":     save,
	"download": download,
	"snapshot": snapshot,
	"watch":    watch,
}

func usageError(format string, args ...any) error {
	return errors.New(400, "usage: cardiac "+format, args...)
}

func login(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("login <deviceId>")
	}
	password := e.flags.password
	if password == "" {
		password = os.Getenv("CARDIAC_PASSWORD")
	}
	if password == "" {
		return errors.New(400, "password required: pass --password or set CARDIAC_PASSWORD")
	}

	if err := e.sessions.Login(ctx, args[0], password); err != nil {
		return err
	}
	sess := e.sessions.VerifyToken(ctx)
	fmt.Fprintf(e.out, "logged in as %s (%s)\n", args[0], sess.Role)
	if !sess.Authenticated {
		// 登录成功但设备还没有元数据记录
		fmt.Fprintln(e.out, "session not verified yet: no metadata for this device")
	}
	return nil
}

func logout(ctx context.Context, e *env, _ []string) error {
	if err := e.sessions.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "logged out")
	return nil
}

func status(ctx context.Context, e *env, _ []string) error {
	sess := e.sessions.VerifyToken(ctx)
	printSession(e.out, sess)
	if !sess.Authenticated {
		return errors.ErrRedirectLogin
	}
	return nil
}

func printSession(w io.Writer, sess session.Session) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "authenticated\t%t\n", sess.Authenticated)
	fmt.Fprintf(tw, "device\t%s\n", sess.DeviceID)
	if !sess.Authenticated {
		return
	}
	fmt.Fprintf(tw, "role\t%s\n", sess.Role)
	if md := sess.Metadata; md != nil {
		fmt.Fprintf(tw, "session\t%s\n", md.SessionID)
		fmt.Fprintf(tw, "persistence\t%s\n", onOff(md.PersistenceEnabled))
		if md.PersistenceStartedAt != nil {
			fmt.Fprintf(tw, "recording since\t%s\n", md.PersistenceStartedAt.Local().Format(time.DateTime))
		}
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func save(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return usageError("save on|off")
	}
	sess, err := e.sessions.Guard(ctx)
	if err != nil {
		return err
	}
	p := e.persistence()
	p.Reconcile(sess.Metadata)
	if err := p.Set(ctx, args[0] == "on"); err != nil {
		return err
	}
	printPersistence(e.out, p.State())
	return nil
}

func printPersistence(w io.Writer, st persistence.State) {
	fmt.Fprintf(w, "persistence %s", onOff(st.Enabled))
	if st.StartedAt != nil {
		fmt.Fprintf(w, " since %s", st.StartedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)
}

func download(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usageError("download current|previous|<sessionId>...")
	}
	if _, err := e.sessions.Guard(ctx); err != nil {
		return err
	}
	dl, err := e.downloader()
	if err != nil {
		return err
	}

	var results []readings.Result
	switch {
	case len(args) == 1 && args[0] == "current":
		r, err := dl.DownloadCurrent(ctx)
		results = append(results, r)
		if r.SessionID == "" && err != nil {
			return err
		}
	case len(args) == 1 && args[0] == "previous":
		r, err := dl.DownloadPrevious(ctx)
		results = append(results, r)
		if r.SessionID == "" && err != nil {
			return err
		}
	default:
		results, _ = dl.Download(ctx, args...)
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(e.out, "%s\tfailed: %v\n", r.SessionID, r.Err)
			errs = append(errs, r.Err)
			continue
		}
		fmt.Fprintf(e.out, "%s\t%s\t%d bytes\n", r.SessionID, r.Location, r.Size)
	}
	return errors.Join(errs...)
}

// snapshot 采集到窗口填满或超时后把波形写成 PNG
func snapshot(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 || !strings.EqualFold(filepath.Ext(args[0]), ".png") {
		return usageError("snapshot <file.png>")
	}
	sess, err := e.sessions.Guard(ctx)
	if err != nil {
		return err
	}

	dialer, err := e.dialer()
	if err != nil {
		return err
	}
	win := chart.NewWindow(e.cfg.Chart.Points)
	conn, err := dialer.Dial(ctx, sess.DeviceID, sess.Token, win)
	if err != nil {
		return err
	}
	timeout := time.NewTimer(e.flags.duration)
	defer timeout.Stop()
collect:
	for win.Len() < win.Cap() {
		select {
		case <-win.Redraws():
		case <-conn.Done():
			break collect
		case <-timeout.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}
	_ = conn.Close()
	if err := conn.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := e.cfg.Chart.PNG("ECG " + sess.DeviceID).Render(&buf, win.Slots()); err != nil {
		return err
	}
	if err := os.WriteFile(args[0], buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, 500, "write snapshot")
	}
	fmt.Fprintf(e.out, "%s\t%d samples\n", args[0], win.Len())
	return nil
}

// watch 挂载监测视图，终端绘制波形，按配置启动状态服务与定时校验，直到收到信号
func watch(ctx context.Context, e *env, _ []string) error {
	if _, err := e.sessions.Guard(ctx); err != nil {
		return err
	}

	dialer, err := e.dialer()
	if err != nil {
		return err
	}
	p := e.persistence()
	win := chart.NewWindow(e.cfg.Chart.Points)
	opts := []monitor.Option{monitor.WithLogger(e.logger)}
	kc, err := e.kafka()
	if err != nil {
		return err
	}
	if kc != nil {
		opts = append(opts, monitor.WithTee(func(deviceID string) stream.Sink { return kc.Tee(deviceID) }))
	}
	m := monitor.New(e.sessions, dialer, p, win, opts...)

	term := e.cfg.Chart.Terminal(func() string {
		st := m.Status()
		header := fmt.Sprintf("device %s  stream %s  persistence %s", st.DeviceID, st.Stream, onOff(st.Persistence.Enabled))
		if st.Elapsed != "" {
			header += "  " + st.Elapsed
		}
		return header
	})

	appOpts := []app.Option{
		app.WithContext(ctx),
		app.WithLogger(e.logger),
		app.WithRunner("monitor", m.Run),
		app.WithRunner("chart", func(ctx context.Context) error {
			return chart.Follow(ctx, win, term, e.out)
		}),
	}

	if e.cfg.Status.Enabled {
		handler := xhttp.NewHandler(&xhttp.API{
			Monitor:       m,
			Sessions:      e.sessions,
			Toggler:       p,
			Snapshot:      e.cfg.Chart.PNG("ECG"),
			ToggleTimeout: e.cfg.Backend.Timeout,
			Logger:        e.logger,
		})
		appOpts = append(appOpts, app.WithServer(xhttp.NewServer(e.cfg.Status.Addr, handler,
			xhttp.WithLogger(e.logger),
			xhttp.WithMetricsOptions(e.cfg.Status.Metrics),
			xhttp.WithHealthOptions(e.cfg.Status.Health),
		)))
	}

	if schedule := e.cfg.Session.Reverify; schedule != "" {
		r, err := session.NewReverifier(e.sessions, schedule)
		if err != nil {
			return err
		}
		appOpts = append(appOpts, app.WithRunner("reverifier", func(ctx context.Context) error {
			r.Start(ctx)
			<-ctx.Done()
			r.Stop()
			return nil
		}))
	}

	if e.conf != nil {
		_ = e.conf.Watch(func() {
			e.logger.Warn().Msg("config changed on disk, restart watch to apply")
		})
	}

	return app.New(appOpts...).Start()
}
