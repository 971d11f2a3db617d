package zip

import (
	"archive/zip"
	"bytes"
)

// Entry is one file destined for an archive.
type Entry struct {
	Filename string
	Data     []byte
}

// Archive packs the entries into a single in-memory zip. Entries with no
// data are skipped rather than producing empty files.
func Archive(entries []Entry) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range entries {
		if len(entry.Data) == 0 {
			continue
		}
		w, err := zw.Create(entry.Filename)
		if err != nil {
			continue
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
