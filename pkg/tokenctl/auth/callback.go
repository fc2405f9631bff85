package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

const (
	callbackReadTimeout = time.Minute
	callbackSuccessPage = "Signed in. Go back to your terminal :)\n"
)

var errEmptyConnection = errors.New("connection closed before sending a request")

// Callback is the authorization response delivered to the redirect URL.
type Callback struct {
	Code  string
	State string
}

// CallbackListener receives exactly one redirect from the provider on the
// loopback address of the redirect URL. It is bound on creation so the
// browser can be opened afterwards without missing the redirect.
type CallbackListener struct {
	listener net.Listener
}

// ListenCallback binds the host and port of redirectURL (port 80 when the
// URL has none).
func ListenCallback(ctx context.Context, redirectURL string) (*CallbackListener, error) {
	u, err := profile.ParseRedirectURL(redirectURL)
	if err != nil {
		return nil, err
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	addr := net.JoinHostPort(u.Hostname(), port)
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener on %s: %w", addr, err)
	}
	return &CallbackListener{listener: listener}, nil
}

// Addr returns the bound address.
func (l *CallbackListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close releases the socket. It is safe to call more than once.
func (l *CallbackListener) Close() error {
	err := l.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

type callbackResult struct {
	cb  *Callback
	err error
}

// Wait blocks until the provider redirects the browser to the listener,
// answers that single request and closes the listener. Connections are
// served concurrently and the first one carrying a request decides the
// result. Connections that send nothing (browser preconnects) are ignored,
// even while they stay open. Wait returns ErrCallbackTimeout when ctx hits
// its deadline.
func (l *CallbackListener) Wait(ctx context.Context) (*Callback, error) {
	serveCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = l.Close()
		wg.Wait()
	}()
	stop := context.AfterFunc(serveCtx, func() {
		_ = l.listener.Close()
	})
	defer stop()

	results := make(chan callbackResult)
	report := func(r callbackResult) {
		select {
		case results <- r:
		case <-serveCtx.Done():
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := l.listener.Accept()
			if err != nil {
				if serveCtx.Err() == nil {
					report(callbackResult{err: fmt.Errorf("failed to accept callback connection: %w", err)})
				}
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				cb, err := serveCallback(serveCtx, conn)
				if errors.Is(err, errEmptyConnection) {
					return
				}
				report(callbackResult{cb: cb, err: err})
			}()
		}
	}()

	select {
	case r := <-results:
		return r.cb, r.err
	case <-ctx.Done():
		return nil, contextError(ctx)
	}
}

func serveCallback(ctx context.Context, conn net.Conn) (*Callback, error) {
	defer func() {
		_ = conn.Close()
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()
	_ = conn.SetReadDeadline(time.Now().Add(callbackReadTimeout))

	reader := bufio.NewReader(conn)
	if _, err := reader.Peek(1); err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.Is(err, io.EOF) || errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errEmptyConnection
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
	}
	req, err := http.ReadRequest(reader)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		writeCallbackResponse(conn, http.StatusBadRequest, "Malformed request.\n")
		return nil, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
	}

	query := req.URL.Query()
	if reason := query.Get("error"); reason != "" {
		writeCallbackResponse(conn, http.StatusOK, "Sign in failed: "+reason+". Go back to your terminal.\n")
		if desc := query.Get("error_description"); desc != "" {
			reason = reason + ": " + desc
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderDenied, reason)
	}
	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		writeCallbackResponse(conn, http.StatusBadRequest, "Missing code or state.\n")
		return nil, fmt.Errorf("%w: missing code or state in %s", ErrMalformedCallback, req.URL.Path)
	}
	writeCallbackResponse(conn, http.StatusOK, callbackSuccessPage)
	return &Callback{Code: code, State: state}, nil
}

func writeCallbackResponse(w io.Writer, status int, body string) {
	resp := &http.Response{
		StatusCode:    status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(strings.NewReader(body)),
		Close:         true,
	}
	_ = resp.Write(w)
}

func contextError(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrCallbackTimeout, err)
	default:
		return err
	}
}
