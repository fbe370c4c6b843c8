package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeWAD writes a PWAD holding the named lumps to a temporary file.
func writeWAD(t *testing.T, names []string, data [][]byte) string {
	t.Helper()
	var body, dir bytes.Buffer
	pos := 12
	for i, name := range names {
		var n [8]byte
		copy(n[:], name)
		binary.Write(&dir, binary.LittleEndian, [2]int32{int32(pos), int32(len(data[i]))})
		dir.Write(n[:])
		body.Write(data[i])
		pos += len(data[i])
	}
	var out bytes.Buffer
	out.WriteString("PWAD")
	binary.Write(&out, binary.LittleEndian, [2]int32{int32(len(names)), int32(pos)})
	out.Write(body.Bytes())
	out.Write(dir.Bytes())

	path := filepath.Join(t.TempDir(), "test.wad")
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMapsCommand(t *testing.T) {
	path := writeWAD(t, []string{"E1M1", "THINGS", "MAP07", "THINGS"}, make([][]byte, 4))
	out, err := execute("maps", path)
	if err != nil {
		t.Fatal(err)
	}
	if out != "E1M1\nMAP07\n" {
		t.Errorf("maps output = %q", out)
	}
}

func TestLoadCommandBadTextures(t *testing.T) {
	path := writeWAD(t, []string{"TEXTURE1"}, [][]byte{{1}})
	_, err := execute("load", path, "E1M1")
	if err == nil {
		t.Fatal("loaded with a bad TEXTURE1")
	}
	if !strings.HasPrefix(err.Error(), "load texture names: ") {
		t.Errorf("err = %v", err)
	}
}
