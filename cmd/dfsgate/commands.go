package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/properties"
)

func parseArgs(name string, args []string, want int, setup func(*flag.FlagSet)) ([]string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if want >= 0 && fs.NArg() != want {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", name, want, fs.NArg())
	}
	return fs.Args(), nil
}

func runMkfs(ctx context.Context, s *session, args []string) error {
	if _, err := parseArgs("mkfs", args, 0, nil); err != nil {
		return err
	}
	if err := s.svc.CreateFilesystem(ctx, s.handle); err != nil {
		return err
	}
	logger.Info("Created filesystem %s", filesystem.Qualify(s.handle, ""))
	return nil
}

func runRmfs(ctx context.Context, s *session, args []string) error {
	if _, err := parseArgs("rmfs", args, 0, nil); err != nil {
		return err
	}
	if err := s.svc.DeleteFilesystem(ctx, s.handle); err != nil {
		return err
	}
	logger.Info("Deleted filesystem %s", filesystem.Qualify(s.handle, ""))
	return nil
}

func runLs(ctx context.Context, s *session, args []string) error {
	rest, err := parseArgs("ls", args, -1, nil)
	if err != nil {
		return err
	}
	p := "/"
	if len(rest) > 0 {
		p = rest[0]
	}

	statuses, err := s.svc.ListStatus(ctx, s.handle, p)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		fmt.Println(formatStatus(st))
	}
	return nil
}

func formatStatus(st filesystem.FileStatus) string {
	kind := "-"
	if st.IsDir {
		kind = "d"
	}
	return fmt.Sprintf("%s %12d %s %s", kind, st.Length, st.ModTime().Format(time.RFC3339), st.Path)
}

func runStat(ctx context.Context, s *session, args []string) error {
	rest, err := parseArgs("stat", args, 1, nil)
	if err != nil {
		return err
	}

	st, err := s.svc.GetFileStatus(ctx, s.handle, rest[0])
	if err != nil {
		return err
	}
	fmt.Printf("Path:         %s\n", st.Path)
	fmt.Printf("Directory:    %t\n", st.IsDir)
	fmt.Printf("Length:       %d\n", st.Length)
	fmt.Printf("Modified:     %s\n", st.ModTime().Format(time.RFC3339))
	fmt.Printf("Replication:  %d\n", st.Replication)
	fmt.Printf("Block size:   %d\n", st.BlockSize)
	fmt.Printf("Version:      %s\n", st.Version)
	return nil
}

func runMkdir(ctx context.Context, s *session, args []string) error {
	rest, err := parseArgs("mkdir", args, 1, nil)
	if err != nil {
		return err
	}
	return s.svc.CreateDirectory(ctx, s.handle, rest[0])
}

func runRm(ctx context.Context, s *session, args []string) error {
	var recursive bool
	rest, err := parseArgs("rm", args, 1, func(fs *flag.FlagSet) {
		fs.BoolVar(&recursive, "r", false, "Delete directories and their contents")
	})
	if err != nil {
		return err
	}
	return s.svc.Delete(ctx, s.handle, rest[0], recursive)
}

func runMv(ctx context.Context, s *session, args []string) error {
	rest, err := parseArgs("mv", args, 2, nil)
	if err != nil {
		return err
	}
	return s.svc.Rename(ctx, s.handle, rest[0], rest[1])
}

func runPut(ctx context.Context, s *session, args []string) error {
	var overwrite bool
	rest, err := parseArgs("put", args, 2, func(fs *flag.FlagSet) {
		fs.BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	})
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	if rest[0] != "-" {
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	out, err := s.svc.CreateFile(ctx, s.handle, rest[1], overwrite)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, src)
	if err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	logger.Info("Wrote %d bytes to %s", n, filesystem.Qualify(s.handle, rest[1]))
	return nil
}

func runCat(ctx context.Context, s *session, args []string) error {
	rest, err := parseArgs("cat", args, 1, nil)
	if err != nil {
		return err
	}

	stats := &filesystem.Statistics{}
	in, err := s.svc.OpenForRead(ctx, s.handle, rest[0], stats)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if _, err := io.Copy(os.Stdout, in); err != nil {
		return err
	}
	logger.Debug("Read %d bytes in %d requests", stats.BytesRead(), stats.ReadOps())
	return nil
}

func runGetProps(ctx context.Context, s *session, args []string) error {
	rest, err := parseArgs("getprops", args, -1, nil)
	if err != nil {
		return err
	}

	var props properties.Properties
	if len(rest) == 0 {
		props, err = s.svc.GetFilesystemProperties(ctx, s.handle)
	} else {
		props, err = s.svc.GetPathProperties(ctx, s.handle, rest[0])
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%s\n", k, props[k])
	}
	return nil
}

func runSetProps(ctx context.Context, s *session, args []string) error {
	var p string
	rest, err := parseArgs("setprops", args, -1, func(fs *flag.FlagSet) {
		fs.StringVar(&p, "path", "", "Path to update (default: the filesystem)")
	})
	if err != nil {
		return err
	}

	props, err := parseProperties(rest)
	if err != nil {
		return err
	}
	if p == "" {
		return s.svc.SetFilesystemProperties(ctx, s.handle, props)
	}
	return s.svc.SetPathProperties(ctx, s.handle, p, props)
}

// parseProperties turns key=value arguments into properties.
func parseProperties(args []string) (properties.Properties, error) {
	props := properties.Properties{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q: expected key=value", arg)
		}
		props[key] = value
	}
	return props, nil
}
