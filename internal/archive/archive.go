// Package archive exposes the on-disk layout of an extracted LAC session:
// table file paths, camera directories and image asset paths. It never
// parses table contents.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lunarloc/lacreplay/pkg/core"
)

const (
	initialFile  = "initial.toml"
	metadataFile = "metadata.toml"
	framesFile   = "frames.csv"
	customDir    = "custom"
	tableSuffix  = "_frames.csv"
)

// cameraDirs are the camera subtree names in preference order. The recorder
// writes "cameras"; "images" is accepted for hand-extracted archives.
var cameraDirs = []string{"cameras", "images"}

// Store is a read-only view over one session's file tree. Immutable for the
// lifetime of the session.
type Store struct {
	root      string
	cameraDir string
	tempDir   string // non-empty when opened from a packed archive
	cameras   []string
	customs   []string
}

// Open opens a session rooted at path. Path may be an extracted session
// directory or a packed .tar.gz archive; packed archives are unpacked into a
// temp directory owned by the store and removed by Close. A root missing the
// global frame table fails with core.ErrNotFound.
func Open(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, core.ErrNotFound)
	}

	s := &Store{root: path}
	if !info.IsDir() {
		tempDir, err := os.MkdirTemp("", "lacreplay-*")
		if err != nil {
			return nil, fmt.Errorf("unpacking archive %s: %v", path, err)
		}
		if err := unpack(path, tempDir); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("unpacking archive %s: %w", path, err)
		}
		s.root = tempDir
		s.tempDir = tempDir
	}

	if _, err := os.Stat(filepath.Join(s.root, framesFile)); err != nil {
		s.Close()
		return nil, fmt.Errorf("global frame table %s: %w", framesFile, core.ErrNotFound)
	}

	s.cameraDir = cameraDirs[0]
	for _, dir := range cameraDirs {
		if _, err := os.Stat(filepath.Join(s.root, dir)); err == nil {
			s.cameraDir = dir
			break
		}
	}
	s.cameras = listSubdirs(filepath.Join(s.root, s.cameraDir))
	s.customs = listCustomTables(filepath.Join(s.root, customDir))
	return s, nil
}

// Close releases the store. Only packed archives hold resources (the
// unpacked temp tree).
func (s *Store) Close() error {
	if s.tempDir == "" {
		return nil
	}
	err := os.RemoveAll(s.tempDir)
	s.tempDir = ""
	return err
}

// Root returns the directory the store serves files from.
func (s *Store) Root() string {
	return s.root
}

// Cameras returns the camera names discovered under the camera subtree.
// A session with no camera directories yields an empty set, not an error.
func (s *Store) Cameras() []string {
	return append([]string(nil), s.cameras...)
}

// Customs returns the custom record table names discovered under custom/.
func (s *Store) Customs() []string {
	return append([]string(nil), s.customs...)
}

// InitialPath returns the path of the initial record.
func (s *Store) InitialPath() string {
	return filepath.Join(s.root, initialFile)
}

// MetadataPath returns the path of the metadata record.
func (s *Store) MetadataPath() string {
	return filepath.Join(s.root, metadataFile)
}

// FramesPath returns the path of the global frame table.
func (s *Store) FramesPath() string {
	return filepath.Join(s.root, framesFile)
}

// CameraTablePath returns the path of a camera's frame table.
func (s *Store) CameraTablePath(camera string) string {
	return filepath.Join(s.root, s.cameraDir, camera, camera+tableSuffix)
}

// CustomPath returns the path of a named custom record table.
func (s *Store) CustomPath(name string) string {
	return filepath.Join(s.root, customDir, name+".csv")
}

// ImagePath returns the path of an image asset. fileName is the asset file
// name recorded in the camera's frame table row for the channel.
func (s *Store) ImagePath(camera string, channel core.Channel, fileName string) string {
	return filepath.Join(s.root, s.cameraDir, camera, string(channel), fileName)
}

// ImageFileName returns the conventional asset file name for a triple, used
// when a camera table row does not carry an explicit file name column.
func ImageFileName(camera string, channel core.Channel, frame int) string {
	return fmt.Sprintf("%s_%s_%d.png", camera, channel, frame)
}

func listSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func listCustomTables(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(names)
	return names
}

// unpack extracts a .tar.gz archive into dest, rejecting entries that would
// escape it.
func unpack(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: not a gzip archive: %v", core.ErrParse, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrParse, err)
		}

		name := filepath.Clean(hdr.Name)
		if name == "." || strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			continue
		}
		target := filepath.Join(dest, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}
