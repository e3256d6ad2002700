package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"clipcast/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMIME = "application/vnd.google-apps.folder"

// GDrive stores videos in a dedicated Google Drive folder
type GDrive struct {
	drive    *drive.Service
	folderID string
}

// NewGDrive creates a Drive-backed store using application default
// credentials (GOOGLE_APPLICATION_CREDENTIALS) and ensures the video
// folder exists.
func NewGDrive(ctx context.Context) (*GDrive, error) {
	creds, err := google.FindDefaultCredentials(ctx, config.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to find default credentials: %w", err)
	}

	service, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	g := &GDrive{drive: service}
	if g.folderID, err = g.ensureFolder(ctx, config.GDriveFolder); err != nil {
		return nil, err
	}

	slog.Info("Google Drive storage initialized", "folder", config.GDriveFolder, "folder_id", g.folderID)
	return g, nil
}

// NewGDriveWithToken creates a Drive-backed store from a bearer token.
// Useful for poking a personal Drive from a dev machine.
func NewGDriveWithToken(ctx context.Context, accessToken string) (*GDrive, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	service, err := drive.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	g := &GDrive{drive: service}
	if g.folderID, err = g.ensureFolder(ctx, config.GDriveFolder); err != nil {
		return nil, err
	}
	return g, nil
}

// NewGDriveWithService wraps an existing Drive client. Test hook.
func NewGDriveWithService(service *drive.Service, folderID string) *GDrive {
	return &GDrive{drive: service, folderID: folderID}
}

// ensureFolder finds or creates the named folder at the Drive root
func (g *GDrive) ensureFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", name, folderMIME)
	result, err := g.drive.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up video folder: %w", err)
	}
	if len(result.Files) > 0 {
		return result.Files[0].Id, nil
	}

	folder, err := g.drive.Files.Create(&drive.File{Name: name, MimeType: folderMIME}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create video folder: %w", err)
	}
	return folder.Id, nil
}

func (g *GDrive) Upload(ctx context.Context, localPath, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer file.Close()

	meta := &drive.File{Name: name, MimeType: videoMIME, Parents: []string{g.folderID}}
	created, err := g.drive.Files.Create(meta).Media(file).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	// Anyone with the link can play the result
	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := g.drive.Permissions.Create(created.Id, perm).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}

	slog.Info("Video uploaded", "name", name, "drive_id", created.Id)
	return downloadURLForDriveID(created.Id), nil
}

func downloadURLForDriveID(driveID string) string {
	return fmt.Sprintf("https://drive.usercontent.google.com/download?id=%s&export=download&authuser=0&confirm=t", driveID)
}

func (g *GDrive) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	id, err := g.findByName(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	if id == "" {
		return nil, 0, os.ErrNotExist
	}

	resp, err := g.drive.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to download video %s: %w", name, err)
	}
	return resp.Body, resp.ContentLength, nil
}

func (g *GDrive) Exists(ctx context.Context, name string) (bool, error) {
	id, err := g.findByName(ctx, name)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

func (g *GDrive) Delete(ctx context.Context, name string) error {
	id, err := g.findByName(ctx, name)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	if err := g.drive.Files.Delete(id).Context(ctx).Do(); err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil
		}
		return fmt.Errorf("failed to delete video %s: %w", name, err)
	}
	return nil
}

func (g *GDrive) List(ctx context.Context) ([]Object, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", g.folderID)
	var objects []Object
	pageToken := ""
	for {
		call := g.drive.Files.List().Q(query).
			Fields("nextPageToken, files(id, name, size, modifiedTime)").Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		result, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list video folder: %w", err)
		}

		for _, f := range result.Files {
			modTime, err := time.Parse(time.RFC3339, f.ModifiedTime)
			if err != nil {
				slog.Warn("Could not parse modifiedTime", "time", f.ModifiedTime, "file", f.Name, "error", err)
				continue
			}
			objects = append(objects, Object{Name: f.Name, Size: f.Size, ModTime: modTime})
		}

		if result.NextPageToken == "" {
			return objects, nil
		}
		pageToken = result.NextPageToken
	}
}

// findByName resolves a video name inside the folder to a Drive file
// ID, or "" when absent
func (g *GDrive) findByName(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", name, g.folderID)
	result, err := g.drive.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up video %s: %w", name, err)
	}
	if len(result.Files) == 0 {
		return "", nil
	}
	return result.Files[0].Id, nil
}
