package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
)

// SupabaseSink upserts rows through the PostgREST endpoint of a Supabase
// project.
type SupabaseSink struct {
	client    *postgrest.Client
	transport *http.Transport
	Table     string
}

func NewSupabaseSink(baseURL, key, table string, timeout time.Duration) *SupabaseSink {
	client := postgrest.NewClient(strings.TrimRight(baseURL, "/")+"/rest/v1", "public", map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	})

	// postgrest-go has no per-request context, so timeouts live on the transport
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	if client.Transport != nil {
		client.Transport.Parent = transport
	}

	return &SupabaseSink{
		client:    client,
		transport: transport,
		Table:     table,
	}
}

func (s *SupabaseSink) Upsert(ctx context.Context, rows []MergedRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := s.client.From(s.Table).Upsert(rows, "id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("upserting into %s: %w", s.Table, err)
	}
	return nil
}

func (s *SupabaseSink) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}
