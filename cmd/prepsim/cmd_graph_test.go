package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/annebeks/prepsim/internal/visualization"
)

func TestGraphCmd_DefaultFormatIsDOT(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out := mustExecute(t, "graph", "--nodes", "30", "--seed", "1", "--week", "2")
	if !strings.HasPrefix(out, "graph prepsim {") {
		t.Errorf("expected DOT output, got:\n%.200s", out)
	}
	if !strings.Contains(out, "fillcolor") {
		t.Errorf("expected coloured nodes:\n%.200s", out)
	}
}

func TestGraphCmd_JSONToFile(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	outPath := filepath.Join(tmpDir, "network.json")

	mustExecute(t, "graph", "--nodes", "30", "--seed", "1", "--week", "3", "--format", "json", "--output", outPath)

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("graph output not written: %v", err)
	}
	var g visualization.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("invalid JSON graph: %v", err)
	}
	if g.Week != 3 || g.NodeCount != 30 || len(g.Nodes) != 30 {
		t.Errorf("unexpected graph: week %d, %d nodes", g.Week, g.NodeCount)
	}
	if g.EdgeCount != len(g.Edges) {
		t.Errorf("edge count %d != %d edges", g.EdgeCount, len(g.Edges))
	}
}

func TestGraphCmd_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := execute(t, "graph", "--format", "html"); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := execute(t, "graph", "--week", "-1"); err == nil {
		t.Error("expected error for negative week")
	}
}
