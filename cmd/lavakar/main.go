// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command lavakar packs compiled shaders into kar archives for lava -pack,
// and lists or extracts their contents.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/devblok/lava/utility/kar"
	log "github.com/sirupsen/logrus"
	"github.com/xlab/closer"
	"github.com/xlab/tablewriter"
)

var currentUserName = "unknown"

func init() {
	if u, err := user.Current(); err == nil && u.Username != "" {
		currentUserName = u.Username
	}
}

var (
	author   = flag.String("author", currentUserName, "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given into the current directory")
	compress = flag.String("c", "", "Compress the compiled shaders of the given folder")
	list     = flag.String("l", "", "List the contents of the archive given")
	dstFile  = flag.String("f", "shaders.kar", "Destination file")
	all      = flag.Bool("a", false, "Compress every file, not just .spv")
)

func main() {
	flag.Parse()
	defer closer.Close()

	var err error
	switch {
	case countSet(*extract, *compress, *list) > 1:
		err = errors.New("only one operation at a time")
	case *compress != "":
		err = compressFiles(*compress, *dstFile)
	case *extract != "":
		err = extractFiles(*extract)
	case *list != "":
		err = listFiles(*list)
	default:
		flag.PrintDefaults()
	}
	if err != nil {
		log.WithError(err).Error("lavakar")
		closer.Exit(1)
	}
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

func compressFiles(dir, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Newf("destination file %s exists, will not overwrite", dst)
	}

	builder := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || (!*all && !strings.HasSuffix(path, ".spv")) {
			return nil
		}
		name, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		log.WithField("file", name).Debug("adding")
		return builder.Add(filepath.ToSlash(name), data)
	}); err != nil {
		return errors.Wrapf(err, "walking %s", dir)
	}
	if builder.Len() == 0 {
		return errors.Newf("nothing to compress in %s", dir)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	written, err := builder.WriteTo(f)
	if err != nil {
		f.Close()
		return err
	}
	log.WithFields(log.Fields{
		"files": builder.Len(),
		"bytes": written,
	}).Info(dst)
	return f.Close()
}

func extractFiles(src string) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, entry := range archive.Header().Index {
		data, err := archive.ReadAll(entry.Name)
		if err != nil {
			return err
		}
		path := filepath.FromSlash(entry.Name)
		if filepath.IsAbs(path) || strings.HasPrefix(filepath.Clean(path), "..") {
			return errors.Newf("refusing to extract %s outside the current directory", entry.Name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := ioutil.WriteFile(path, data, 0644); err != nil {
			return err
		}
		log.WithField("file", path).Info("extracted")
	}
	return nil
}

func listFiles(src string) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	header := archive.Header()
	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle(strings.ToUpper(filepath.Base(src)))
	table.AddRow("Author", header.Author)
	table.AddRow("Version", header.Version)
	table.AddRow("Created", time.Unix(header.DateCreated, 0).Format(time.RFC3339))
	table.AddSeparator()
	table.AddRow("File", "Size", "Compressed")
	for _, entry := range header.Index {
		table.AddRow(entry.Name, entry.Size, entry.CompressedSize)
	}
	fmt.Println(table.Render())
	return nil
}
