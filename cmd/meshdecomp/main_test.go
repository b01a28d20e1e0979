package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshdecomp/config"
	"github.com/notargets/meshdecomp/structured"
)

const cubeYAML = `
processors: 1
zones:
  - name: cube
    extents: [4, 4, 4]
`

const twoTetsNeu = `        CONTROL INFO 2.0.0
** GAMBIT NEUTRAL FILE
Two tets
PROGRAM:                  Test     VERSION:  1.0
Mon Jan  1 00:00:00 2025
     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL
         8         2         1         2         3         3
ENDOFSECTION
   NODAL COORDINATES 2.0.0
         1   0.00000000000e+00   0.00000000000e+00   0.00000000000e+00
         2   1.00000000000e+00   0.00000000000e+00   0.00000000000e+00
         3   0.00000000000e+00   1.00000000000e+00   0.00000000000e+00
         4   0.00000000000e+00   0.00000000000e+00   1.00000000000e+00
         5   1.00000000000e+00   1.00000000000e+00   1.00000000000e+00
         6   1.00000000000e+00   0.00000000000e+00   1.00000000000e+00
         7   0.00000000000e+00   1.00000000000e+00   1.00000000000e+00
         8   1.00000000000e+00   1.00000000000e+00   0.00000000000e+00
ENDOFSECTION
   ELEMENTS/CELLS 2.0.0
         1         6         4         1         2         3         4
         2         6         4         2         3         4         5
ENDOFSECTION
       BOUNDARY CONDITIONS 2.0.0
inlet           1         2         0         0         0         0         0         0
         1         6         1
         1         6         2
wall            1         3         0         0         0         0         0         0
         1         6         3
         2         6         1
         2         6         4
ENDOFSECTION`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDecompose(t *testing.T) {
	cfg := writeFile(t, "cube.yaml", cubeYAML)
	out, err := execute(t, "decompose", "-c", cfg, "-p", "2", "--exchange", "--yaml", "-")
	require.NoError(t, err)

	assert.Contains(t, out, "Decomposition for 2 processors")
	assert.Contains(t, out, "cube_c1")
	assert.Contains(t, out, "cube_c2")
	assert.Regexp(t, `(?m)^\s+0\s+1\s+25$`, out)
	assert.Regexp(t, `(?m)^\s+1\s+0\s+25$`, out)
	assert.Contains(t, out, "processors: 2")
	assert.Contains(t, out, "transform: [1, 2, 3]")
}

func TestDecompose_YAMLFile(t *testing.T) {
	cfg := writeFile(t, "cube.yaml", cubeYAML)
	path := filepath.Join(t.TempDir(), "out.yaml")
	_, err := execute(t, "decompose", "-c", cfg, "-p", "4", "--yaml", path)
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "processors: 4")
	assert.Contains(t, string(body), "adam_name: cube")
}

func TestDecompose_Errors(t *testing.T) {
	_, err := execute(t, "decompose", "-p", "2")
	assert.True(t, errors.Is(err, structured.ErrConfiguration), "%v", err)

	cfg := writeFile(t, "cube.yaml", cubeYAML)
	_, err = execute(t, "decompose", "-c", cfg, "--load-balance", "-1")
	assert.True(t, errors.Is(err, structured.ErrConfiguration), "%v", err)

	_, err = execute(t, "decompose", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSkin(t *testing.T) {
	msh := writeFile(t, "two_tets.neu", twoTetsNeu)
	out, err := execute(t, "skin", msh, "--sideset", "-w", "2")
	require.NoError(t, err)

	assert.Regexp(t, `(?m)^tetra4\s+2\s+1\s+6$`, out)
	assert.Regexp(t, `(?m)^mesh\s+2\s+1\s+6$`, out)
	assert.Contains(t, out, "sideset boundary: 6 faces")
}

func TestSkin_Errors(t *testing.T) {
	_, err := execute(t, "skin")
	assert.Error(t, err)

	_, err = execute(t, "skin", filepath.Join(t.TempDir(), "nope.neu"))
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	v := config.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("processors", 0, "")
	bindFlags(v, fs, map[string]string{"processors": "processors"})
	require.NoError(t, fs.Parse([]string{"--processors", "6"}))
	assert.Equal(t, 6, v.GetInt("processors"))

	assert.Panics(t, func() {
		bindFlags(v, fs, map[string]string{"verbose": "no-such-flag"})
	})
}

func TestDecompose_Bisection(t *testing.T) {
	cfg := writeFile(t, "cube.yaml", cubeYAML)
	out, err := execute(t, "decompose", "-c", cfg, "-p", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "cube_c2_c2_c2")
	assert.NotContains(t, out, "warning:")
}
