package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/warlomak/compoundfiles"
	"github.com/warlomak/compoundfiles/internal/header"
	"github.com/warlomak/compoundfiles/internal/sectorio"
)

func main() {
	app := cli.App{
		Usage: "Inspect and build OLE/CFB compound-file containers",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Format a new, empty container",
				Action:    createContainer,
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "profile", Value: "ole2", Usage: "container profile, see list-profiles"},
				},
			},
			{
				Name:      "inspect",
				Usage:     "Open read-only and print any diagnostics raised while opening (header fields are not shown)",
				Action:    inspectContainer,
				ArgsUsage: "FILE",
			},
			{
				Name:      "ls",
				Usage:     "List the entries under a storage path (default: root)",
				Action:    listEntries,
				ArgsUsage: "FILE [PATH]",
			},
			{
				Name:      "extract",
				Usage:     "Write one stream's bytes to stdout",
				Action:    extractStream,
				ArgsUsage: "FILE PATH",
			},
			{
				Name:   "list-profiles",
				Usage:  "Print the known container profiles",
				Action: listProfiles,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func openDevice(path string, create bool) (*os.File, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	return os.OpenFile(path, flags, 0o644)
}

func createContainer(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: cfbtool create FILE")
	}
	profile, err := getProfile(ctx.String("profile"))
	if err != nil {
		return err
	}

	f, err := openDevice(path, true)
	if err != nil {
		return fmt.Errorf("failed to open %q for writing: %w", path, err)
	}
	defer f.Close()

	var hdr *header.Header
	if profile.MajorVersion == 4 {
		hdr = header.NewV4()
	} else {
		hdr = header.NewV3()
	}
	if profile.MiniCutoff != 0 {
		hdr.MiniStreamCutoff = profile.MiniCutoff
	}

	device := sectorio.NewSeekerDevice(f)
	c, err := cfb.CreateWriterWithHeader(device, hdr, nil)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("failed to save %q: %w", path, err)
	}

	fmt.Printf("formatted %q as profile %q (%s)\n", path, profile.Slug, profile.Name)
	return nil
}

func inspectContainer(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: cfbtool inspect FILE")
	}

	f, err := openDevice(path, false)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	c, err := cfb.OpenReader(sectorio.NewSeekerDevice(f))
	if err != nil {
		return fmt.Errorf("open failed: %w", err)
	}

	diags := c.Diagnostics()
	fmt.Printf("%s: opened read-only, %d diagnostic(s)\n", path, len(diags))
	for _, d := range diags {
		fmt.Printf("  [%s] %s\n", d.Code, d.Message)
	}
	return nil
}

func listEntries(ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	if path == "" {
		return fmt.Errorf("usage: cfbtool ls FILE [PATH]")
	}
	target := ctx.Args().Get(1)

	f, err := openDevice(path, false)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	c, err := cfb.OpenReader(sectorio.NewSeekerDevice(f))
	if err != nil {
		return fmt.Errorf("open failed: %w", err)
	}

	entry := c.Root()
	if target != "" && target != "/" {
		entry, err = c.OpenPath(strings.Trim(target, "/"))
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}
	}

	for _, child := range entry.Children() {
		kind := "stream"
		if child.IsStorage() {
			kind = "storage"
		}
		fmt.Printf("%-8s %10d  %s\n", kind, child.Size(), child.Name())
	}
	return nil
}

func extractStream(ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	target := ctx.Args().Get(1)
	if path == "" || target == "" {
		return fmt.Errorf("usage: cfbtool extract FILE PATH")
	}

	f, err := openDevice(path, false)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	c, err := cfb.OpenReader(sectorio.NewSeekerDevice(f))
	if err != nil {
		return fmt.Errorf("open failed: %w", err)
	}

	entry, err := c.OpenPath(strings.Trim(target, "/"))
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	s, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open stream failed: %w", err)
	}

	buf := make([]byte, 32*1024)
	for {
		n, readErr := s.Read(buf)
		if n > 0 {
			if _, err := os.Stdout.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

func listProfiles(ctx *cli.Context) error {
	for _, slug := range sortedProfileSlugs() {
		p := profiles[slug]
		fmt.Printf("%-8s v%d  sector=%-5d mini_cutoff=%-5d  %s\n", p.Slug, p.MajorVersion, p.SectorSize, p.MiniCutoff, p.Name)
		if p.Notes != "" {
			fmt.Printf("         %s\n", p.Notes)
		}
	}
	return nil
}
