package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"findb/internal/storage/sqlite"
)

var (
	dumpDatabase string
	dumpOutput   string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Copy the sqlite database file named by a sqlite:// URI",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := sqlite.PathFromURI(dumpDatabase)
		if err != nil {
			return err
		}
		dst := dumpOutput
		if dst == "" {
			dst = filepath.Base(src)
		}
		fmt.Println("dump database", src, "from uri", dumpDatabase)
		n, err := copyFile(src, dst)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s (%s)\n", dst, humanize.Bytes(uint64(n)))
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpDatabase, "database", "d", "sqlite:///fin.meta.db.sqlite", "Database connection string")
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Destination file (default: the database file name in the working directory)")
	rootCmd.AddCommand(dumpCmd)
}

var errSameFile = errors.New("source and destination are the same file")

// copyFile copies src to dst through a temporary file in the destination directory.
func copyFile(src, dst string) (int64, error) {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return 0, err
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return 0, err
	}
	if srcAbs == dstAbs {
		return 0, fmt.Errorf("%s: %w", src, errSameFile)
	}

	in, err := os.Open(srcAbs)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dstAbs), filepath.Base(dstAbs)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, in)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Rename(tmp.Name(), dstAbs); err != nil {
		return 0, err
	}
	return n, nil
}
