// Command watch follows the realtime feed of a running server and prints
// the size of each mirrored table as events arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"potholewatch/internal/httputil"
	"potholewatch/internal/middleware"
	"potholewatch/internal/service/realtime"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Server base URL")
	password := flag.String("password", os.Getenv("PASSWORD"), "Dashboard password")
	tables := flag.String("tables", "potholes,vehicles,notifications", "Comma separated tables to follow")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cookie, err := login(*server, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	names := strings.Split(*tables, ",")
	feed, err := realtime.FeedURL(*server, names...)
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}

	mirrors := make(map[string]*realtime.Mirror, len(names))
	for _, name := range names {
		mirrors[name] = realtime.NewMirror(name)
	}

	client := &realtime.Client{
		URL:    feed,
		Header: http.Header{"Cookie": []string{cookie.Name + "=" + cookie.Value}},
		OnError: func(err error) {
			log.Printf("⚠️  Feed disconnected: %v", err)
		},
	}

	fmt.Printf("👀 Following %s\n", feed)
	err = client.Run(ctx, func(ev realtime.ChangeEvent) {
		m, ok := mirrors[ev.Table]
		if !ok {
			return
		}
		if err := m.Apply(ev); err != nil {
			log.Printf("⚠️  %s: %v", ev.Table, err)
			return
		}
		fmt.Printf("%s %-13s %-8s rows=%d\n", ev.CommitTime.Local().Format(time.TimeOnly), ev.Table, ev.Type, m.Len())
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("Feed stopped: %v", err)
	}
}

// login exchanges the password for a session cookie.
func login(server, password string) (*http.Cookie, error) {
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(server, "/")+"/auth/login",
		strings.NewReader(url.Values{"password": {password}}.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.NewClient(10 * time.Second).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no %s cookie in response", middleware.SessionCookie)
}
