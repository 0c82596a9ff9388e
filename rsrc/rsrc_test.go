package rsrc

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"git.sr.ht/~jackmordaunt/icogen/ico"
	"github.com/stretchr/testify/require"
)

func container(t *testing.T) ([]byte, [][]byte) {
	t.Helper()
	payloads := [][]byte{
		bytes.Repeat([]byte{0xaa}, 40),
		bytes.Repeat([]byte{0xbb}, 70),
	}
	data, err := ico.Marshal(ico.TypeIcon, []ico.Frame{
		ico.NewPNGFrame(16, payloads[0]),
		ico.NewPNGFrame(32, payloads[1]),
	})
	require.NoError(t, err)
	return data, payloads
}

func TestEmbed(t *testing.T) {
	data, payloads := container(t)
	for _, tt := range []struct {
		arch    string
		machine uint16
	}{
		{"amd64", 0x8664},
		{"386", 0x014c},
	} {
		t.Run(tt.arch, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "rsrc_windows_"+tt.arch+".syso")
			require.NoError(t, Embed(out, tt.arch, data))
			obj, err := os.ReadFile(out)
			require.NoError(t, err)
			require.Equal(t, tt.machine, binary.LittleEndian.Uint16(obj[0:2]))
			for _, p := range payloads {
				require.True(t, bytes.Contains(obj, p), "payload missing from object")
			}
		})
	}
}

func TestEmbedRejects(t *testing.T) {
	data, _ := container(t)
	out := filepath.Join(t.TempDir(), "out.syso")
	require.Error(t, Embed(out, "mips", data))
	require.Error(t, Embed(out, "amd64", data[:len(data)-1]))
	_, err := os.Stat(out)
	require.True(t, os.IsNotExist(err))
}

func TestBuildWrite(t *testing.T) {
	data, _ := container(t)
	obj, err := Build("amd64", data)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, obj))
	require.Equal(t, uint16(0x8664), binary.LittleEndian.Uint16(buf.Bytes()))
	// Header, section header, resource directories and both payloads.
	require.Greater(t, buf.Len(), len(data))
}
