// Package app wires the client core: one SDK client shared by the session
// and feed stores.
package app

import (
	"context"
	"fmt"

	"photofeed/internal/config"
	"photofeed/internal/feed"
	"photofeed/internal/session"
	"photofeed/pkg/client"
)

// App is built once per process and passed to whatever needs the stores.
type App struct {
	Client  *client.Client
	Session *session.Store
	Feed    *feed.Store
}

// New builds the client and both stores from cfg. Nothing talks to the
// network until Start.
func New(cfg *config.ClientConfig, opts ...client.Option) (*App, error) {
	base := []client.Option{client.WithTimeout(cfg.RequestTimeout)}
	if cfg.SessionFile != "" {
		base = append(base, client.WithSessionStorage(client.FileSessionStorage{Path: cfg.SessionFile}))
	}
	c, err := client.New(cfg.APIURL, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	sessions := session.NewStore(c)
	return &App{
		Client:  c,
		Session: sessions,
		Feed:    feed.NewStore(c, sessions),
	}, nil
}

// Start resolves the stored session and loads the feed.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Start(ctx); err != nil {
		return fmt.Errorf("establish session: %w", err)
	}
	if err := a.Feed.Start(ctx); err != nil {
		return fmt.Errorf("load feed: %w", err)
	}
	return nil
}

// Close detaches the stores and closes the realtime socket.
func (a *App) Close() error {
	a.Feed.Close()
	a.Session.Close()
	return a.Client.Close()
}
