// Package inventory produces and checks DFXML reports of the files held in
// a quarantine directory.
package inventory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/ostafen/sigcrawl/internal/env"
	"github.com/ostafen/sigcrawl/internal/mmap"
	"github.com/ostafen/sigcrawl/internal/quarantine"
	"github.com/ostafen/sigcrawl/pkg/dfxml"
)

const DigestType = "sha256"

// Summary reports what a Write call recorded.
type Summary struct {
	Files     int
	TotalSize int64
}

// Write hashes every file in dir and writes the DFXML report to w.
func Write(w io.Writer, dir string) (Summary, error) {
	entries, err := quarantine.List(dir)
	if err != nil {
		return Summary{}, err
	}

	objs := make([]dfxml.FileObject, 0, len(entries))

	var summary Summary
	for _, e := range entries {
		digest, err := hashFile(e.Path)
		if err != nil {
			return Summary{}, fmt.Errorf("failed to hash %s: %w", e.Path, err)
		}

		objs = append(objs, dfxml.FileObject{
			Filename: e.Name,
			FileSize: uint64(e.Size),
			Mode:     e.Mode.String(),
			Mtime:    e.ModTime.UTC().Format(dfxml.TimeFormat),
			Hashes:   []dfxml.HashDigest{{Type: DigestType, Value: digest}},
		})

		summary.Files++
		summary.TotalSize += e.Size
	}

	xw := dfxml.NewWriter(w)

	hdr := dfxml.NewHeader(env.AppName, env.Version, dfxml.Source{
		Directory: dir,
		FileCount: summary.Files,
		TotalSize: uint64(summary.TotalSize),
	})
	if err := xw.WriteHeader(hdr); err != nil {
		return Summary{}, err
	}

	for _, o := range objs {
		if err := xw.WriteFileObject(o); err != nil {
			return Summary{}, err
		}
	}
	return summary, xw.Close()
}

// Problem kinds reported by Verify.
const (
	Missing       = "missing"
	Unlisted      = "unlisted"
	SizeChanged   = "size changed"
	DigestChanged = "digest changed"
	DigestAbsent  = "no digest in report"
)

// Mismatch is a difference between a report and the directory contents.
type Mismatch struct {
	Filename string
	Problem  string
}

func (m Mismatch) String() string {
	return m.Filename + ": " + m.Problem
}

// Verify compares the report read from r with the current content of dir.
// A nil result means the directory matches the report.
func Verify(dir string, r io.Reader) ([]Mismatch, error) {
	doc, err := dfxml.Read(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	entries, err := quarantine.List(dir)
	if err != nil {
		return nil, err
	}

	current := make(map[string]quarantine.Entry, len(entries))
	for _, e := range entries {
		current[e.Name] = e
	}

	var mismatches []Mismatch
	for _, o := range doc.FileObjects {
		e, ok := current[o.Filename]
		if !ok {
			mismatches = append(mismatches, Mismatch{o.Filename, Missing})
			continue
		}
		delete(current, o.Filename)

		if uint64(e.Size) != o.FileSize {
			mismatches = append(mismatches, Mismatch{o.Filename, SizeChanged})
			continue
		}

		want, ok := o.Digest(DigestType)
		if !ok {
			mismatches = append(mismatches, Mismatch{o.Filename, DigestAbsent})
			continue
		}

		got, err := hashFile(e.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", e.Path, err)
		}
		if got != want {
			mismatches = append(mismatches, Mismatch{o.Filename, DigestChanged})
		}
	}

	for name := range current {
		mismatches = append(mismatches, Mismatch{name, Unlisted})
	}

	sort.Slice(mismatches, func(i, j int) bool {
		return mismatches[i].Filename < mismatches[j].Filename
	})
	return mismatches, nil
}

func hashFile(path string) (string, error) {
	mf, err := mmap.Open(path)
	if err != nil {
		return "", err
	}
	defer mf.Close()

	sum := sha256.Sum256(mf.Data)
	return hex.EncodeToString(sum[:]), nil
}
