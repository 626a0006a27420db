// SPDX-License-Identifier: MPL-2.0

package oscmd

import (
	"context"
	"fmt"

	"github.com/phil65/anyenv/pkg/execenv"
)

// RemoteFS inspects a filesystem reachable only through command execution,
// pairing an execution environment with the Commands implementation for
// its operating system.
type RemoteFS struct {
	env  execenv.Environment
	cmds Commands
}

// NewRemoteFS creates a RemoteFS for an environment whose OS is described
// by a GOOS-style name.
func NewRemoteFS(env execenv.Environment, osName string) (*RemoteFS, error) {
	cmds, err := For(osName)
	if err != nil {
		return nil, err
	}
	return &RemoteFS{env: env, cmds: cmds}, nil
}

// List returns the entries of a directory.
func (fs *RemoteFS) List(ctx context.Context, path string) ([]FileInfo, error) {
	result, err := fs.env.RunCommand(ctx, fs.cmds.ListDir(path))
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("failed to list %s: %s", path, result.ErrMsg)
	}
	return fs.cmds.ParseListDir(result.Stdout)
}

// Stat describes a single entry.
func (fs *RemoteFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	result, err := fs.env.RunCommand(ctx, fs.cmds.Stat(path))
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("failed to stat %s: %s", path, result.ErrMsg)
	}
	return fs.cmds.ParseStat(result.Stdout)
}

// Exists reports whether a path exists.
func (fs *RemoteFS) Exists(ctx context.Context, path string) (bool, error) {
	return fs.check(ctx, fs.cmds.Exists(path))
}

// IsFile reports whether a path is a regular file.
func (fs *RemoteFS) IsFile(ctx context.Context, path string) (bool, error) {
	return fs.check(ctx, fs.cmds.IsFile(path))
}

// IsDir reports whether a path is a directory.
func (fs *RemoteFS) IsDir(ctx context.Context, path string) (bool, error) {
	return fs.check(ctx, fs.cmds.IsDir(path))
}

// MkDir creates a directory, including missing parents.
func (fs *RemoteFS) MkDir(ctx context.Context, path string) error {
	result, err := fs.env.RunCommand(ctx, fs.cmds.MakeDir(path, true))
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("failed to create %s: %s", path, result.ErrMsg)
	}
	return nil
}

// Remove deletes a path. Directories are removed recursively.
func (fs *RemoteFS) Remove(ctx context.Context, path string) error {
	result, err := fs.env.RunCommand(ctx, fs.cmds.Remove(path, true))
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("failed to remove %s: %s", path, result.ErrMsg)
	}
	return nil
}

// ReadFile returns a file's contents.
func (fs *RemoteFS) ReadFile(ctx context.Context, path string) (string, error) {
	result, err := fs.env.RunCommand(ctx, fs.cmds.ReadFile(path))
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("failed to read %s: %s", path, result.ErrMsg)
	}
	return result.Stdout, nil
}

// Find walks a tree, optionally filtered by a name pattern
// (e.g. "*.log"). An empty pattern matches everything.
func (fs *RemoteFS) Find(ctx context.Context, root, namePattern string) ([]FileInfo, error) {
	result, err := fs.env.RunCommand(ctx, fs.cmds.Find(root, namePattern))
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("failed to search %s: %s", root, result.ErrMsg)
	}
	return fs.cmds.ParseFind(result.Stdout)
}

// check runs a command whose exit status answers a yes/no question.
func (fs *RemoteFS) check(ctx context.Context, command string) (bool, error) {
	result, err := fs.env.RunCommand(ctx, command)
	if err != nil {
		return false, err
	}
	return result.Success, nil
}
