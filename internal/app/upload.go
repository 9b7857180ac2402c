package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidfriends/uploader/internal/client"
	"github.com/vidfriends/uploader/internal/models"
	"github.com/vidfriends/uploader/internal/videos"
)

type uploadOptions struct {
	server       string
	accessToken  string
	refreshToken string
}

func newUploadCommand() *cobra.Command {
	opts := uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload video files through a running server",
		Long: `Upload video files one at a time through a running uploader server.

The session is taken from the access and refresh cookies issued by the browser
sign-in. An upload rejected as unauthorized triggers a single refresh and retry.

Recognised video extensions: ` + strings.Join(videos.Extensions, " "),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "uploader server base URL")
	cmd.Flags().StringVar(&opts.accessToken, "access-token", os.Getenv("UPLOADER_ACCESS_TOKEN"), "access_token cookie value")
	cmd.Flags().StringVar(&opts.refreshToken, "refresh-token", os.Getenv("UPLOADER_REFRESH_TOKEN"), "refresh_token cookie value")

	return cmd
}

func runUpload(ctx context.Context, out io.Writer, opts uploadOptions, paths []string) error {
	api, err := client.NewHTTPAPI(opts.server, nil)
	if err != nil {
		return err
	}
	api.SetCredentials(opts.accessToken, opts.refreshToken)

	authenticated, err := api.Status(ctx)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	items := make([]*client.Item, 0, len(paths))
	for _, path := range paths {
		mediaType, err := detectFileMediaType(path)
		if err != nil {
			return err
		}
		items = append(items, &client.Item{Name: filepath.Base(path), MediaType: mediaType, Path: path})
	}

	batch := &client.Batch{
		API:           api,
		Authenticated: authenticated,
		OnUpdate: func(item client.Item) {
			if item.Status.Done() {
				fmt.Fprintf(out, "%-10s %s: %s\n", item.Status, item.Name, item.Message)
			}
		},
	}

	notices, err := batch.Run(ctx, items)
	for _, n := range notices {
		fmt.Fprintf(out, "skipped    %s: %s\n", n.Name, n.Reason)
	}
	if err != nil {
		if errors.Is(err, client.ErrNotAuthenticated) {
			return fmt.Errorf("%w: sign in at %s/auth/start", err, opts.server)
		}
		return err
	}

	failed := 0
	for _, item := range items {
		switch {
		case item.Status == models.UploadStatusError:
			failed++
		case item.Status == models.UploadStatusCompleted && item.Result != nil && item.Result.WebViewLink != "":
			fmt.Fprintf(out, "%s -> %s\n", item.Name, item.Result.WebViewLink)
		}
	}
	if !batch.Authenticated {
		fmt.Fprintln(out, "session expired; sign in again to continue")
	}
	if failed > 0 {
		return fmt.Errorf("%d upload(s) failed", failed)
	}
	return nil
}

func detectFileMediaType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return videos.DetectMediaType(path, head[:n]), nil
}
