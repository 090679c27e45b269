package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/gateway"
	"github.com/MrEthical07/goAuthClient/scheduler"
	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in")

func (a *app) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.signIn(cmd, false)
		},
	}
	credentialFlags(cmd)
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store its token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.signIn(cmd, true)
		},
	}
	credentialFlags(cmd)
	return cmd
}

func credentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("email", "e", "", "Account email")
	cmd.Flags().StringP("password", "p", "", "Account password (or GOAUTH_SESSION_PASSWORD)")
}

func (a *app) signIn(cmd *cobra.Command, register bool) error {
	// Local flags are bound at run time so login and register can share keys.
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	email := a.v.GetString("email")
	password := a.v.GetString("password")
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	client, done, err := a.open(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer done()

	var user *goAuthClient.User
	if register {
		user, err = client.Register(cmd.Context(), email, password)
	} else {
		user, err = client.Login(cmd.Context(), email, password)
	}
	if err != nil {
		return err
	}

	name := email
	if user != nil && user.Email != "" {
		name = user.Email
	}
	fmt.Fprintf(a.stdout, "signed in as %s\n", name)
	return nil
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, done, err := a.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			client.Logout(cmd.Context())
			fmt.Fprintln(a.stdout, "signed out")
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Ask the server whether the stored session is still accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, done, err := a.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			ok, err := client.CheckAuthStatus(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.stdout, "not authenticated")
				return nil
			}
			if u, found := client.User(); found && u.Email != "" {
				fmt.Fprintf(a.stdout, "authenticated as %s\n", u.Email)
				return nil
			}
			fmt.Fprintln(a.stdout, "authenticated")
			return nil
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the token pair now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, done, err := a.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			if _, err := client.Refresh(cmd.Context()); err != nil {
				if errors.Is(err, goAuthClient.ErrNoRefreshToken) {
					return errNotSignedIn
				}
				return err
			}
			fmt.Fprintln(a.stdout, "session renewed")
			return nil
		},
	}
}

func (a *app) requestCmd() *cobra.Command {
	var (
		data   string
		fields []string
		files  []string
		query  []string
	)
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authenticated request and print the answer",
		Long:  "Send an authenticated request. A 401 answer renews the session once and replays the request. --data sends JSON; --field and --file send multipart form data.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if data != "" && (len(fields) > 0 || len(files) > 0) {
				return errors.New("--data cannot be combined with --field or --file")
			}

			req := gateway.Request{
				Method: strings.ToUpper(args[0]),
				Path:   args[1],
			}
			if len(query) > 0 {
				req.Query = url.Values{}
				for _, p := range query {
					k, v, err := splitPair(p, "query")
					if err != nil {
						return err
					}
					req.Query.Add(k, v)
				}
			}

			switch {
			case data != "":
				if !json.Valid([]byte(data)) {
					return errors.New("--data must be valid JSON")
				}
				req.Body = json.RawMessage(data)
			case len(fields) > 0 || len(files) > 0:
				form, err := buildMultipart(fields, files)
				if err != nil {
					return err
				}
				req.Body = form
			}

			client, done, err := a.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer done()

			resp, err := client.Do(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			fmt.Fprintf(a.stderr, "HTTP %d\n", resp.StatusCode)
			if _, err := io.Copy(a.stdout, resp.Body); err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("request failed with status %d", resp.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&fields, "field", "F", nil, "Multipart form field name=value (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "Multipart file field=path (repeatable)")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter key=value (repeatable)")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var r renewal
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the stored session renewed until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, done, err := a.open(cmd.Context(), &r)
			if err != nil {
				return err
			}
			defer done()

			if client.RenewalState() != scheduler.Running {
				return errNotSignedIn
			}

			ended := make(chan struct{})
			var once sync.Once
			unsubscribe := client.OnAuthChange(func(authenticated bool) {
				if !authenticated {
					once.Do(func() { close(ended) })
				}
			})
			defer unsubscribe()
			if !client.IsAuthenticated() {
				once.Do(func() { close(ended) })
			}

			fmt.Fprintf(a.stdout, "watching session (threshold %s, every %s)\n", r.threshold, r.interval)
			select {
			case <-cmd.Context().Done():
				fmt.Fprintln(a.stdout, "stopped")
			case <-ended:
				fmt.Fprintln(a.stdout, "session ended")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&r.threshold, "threshold", scheduler.DefaultThreshold, "Renew when the access token expires within this window")
	cmd.Flags().DurationVar(&r.interval, "interval", scheduler.DefaultInterval, "How often to check the access token")
	return cmd
}

func splitPair(p, what string) (string, string, error) {
	k, v, ok := strings.Cut(p, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("invalid %s %q, want key=value", what, p)
	}
	return k, v, nil
}

func buildMultipart(fields, files []string) (*gateway.Multipart, error) {
	form := gateway.NewMultipart()
	for _, f := range fields {
		k, v, err := splitPair(f, "field")
		if err != nil {
			return nil, err
		}
		form.AddField(k, v)
	}
	for _, f := range files {
		field, path, ok := strings.Cut(f, "=")
		if !ok || field == "" || path == "" {
			return nil, fmt.Errorf("invalid file %q, want field=path", f)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		form.AddFile(field, filepath.Base(path), content)
	}
	return form, nil
}
