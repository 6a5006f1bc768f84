package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultLoopbackAddr is where the authorization redirect is received.
const DefaultLoopbackAddr = "127.0.0.1:8888"

// LoopbackFlow runs the installed-app authorization code flow: the user
// opens the consent URL, Google redirects the browser to a listener on the
// loopback interface and the received code is exchanged for a token.
type LoopbackFlow struct {
	Store *TokenStore

	// Addr is the listen address, DefaultLoopbackAddr when empty.
	Addr string

	// Prompt is called with the consent URL once the listener is ready.
	Prompt func(authURL string)
}

type callbackResult struct {
	code string
	err  error
}

// Authorize waits for the redirect and stores the resulting token for the
// account.
func (f *LoopbackFlow) Authorize(ctx context.Context, account string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	addr := f.Addr
	if addr == "" {
		addr = DefaultLoopbackAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for the OAuth redirect: %w", err)
	}
	redirectURL := "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()

	authURL, err := f.Store.AuthURL(redirectURL, state)
	if err != nil {
		ln.Close()
		return err
	}

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: err}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if f.Prompt != nil {
		f.Prompt(authURL)
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return res.err
	}
	return f.Store.SaveToken(ctx, account, redirectURL, res.code)
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusForbidden)
		} else {
			fmt.Fprintln(w, "Authorization received, you can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})
}
