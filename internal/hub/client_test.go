package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestArtifactFiles_PrefersSafetensors(t *testing.T) {
	all := []string{
		".gitattributes",
		"README.md",
		"config.json",
		"model.safetensors",
		"pytorch_model.bin",
		"tokenizer_config.json",
		"vocab.txt",
	}
	got := artifactFiles(all)
	sort.Strings(got)
	want := []string{"config.json", "model.safetensors", "tokenizer_config.json", "vocab.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("artifactFiles = %v, want %v", got, want)
	}
}

func TestArtifactFiles_FallsBackToPytorchBin(t *testing.T) {
	all := []string{"config.json", "pytorch_model.bin", "vocab.txt", "training_args.bin"}
	got := artifactFiles(all)
	sort.Strings(got)
	want := []string{"config.json", "pytorch_model.bin", "vocab.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("artifactFiles = %v, want %v", got, want)
	}
}

func hubServer(t *testing.T, modelID string, files map[string]string, wantAuth string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/"+modelID, func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" && r.Header.Get("Authorization") != wantAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var siblings []string
		for name := range files {
			siblings = append(siblings, fmt.Sprintf(`{"rfilename":%q}`, name))
		}
		fmt.Fprintf(w, `{"siblings":[%s]}`, strings.Join(siblings, ","))
	})
	mux.HandleFunc("/"+modelID+"/resolve/main/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/"+modelID+"/resolve/main/")
		content, ok := files[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, content)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	const modelID = "distilbert-base-uncased-finetuned-sst-2-english"
	files := map[string]string{
		"config.json":       `{"architectures":["DistilBertForSequenceClassification"]}`,
		"model.safetensors": "weights",
		"vocab.txt":         "[PAD]\n[UNK]",
		"README.md":         "not an artifact",
	}
	srv := hubServer(t, modelID, files, "")
	c := NewClientWithBaseURL(srv.URL, "")

	dest := t.TempDir()
	got, err := c.Download(context.Background(), modelID, dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	sort.Strings(got)
	want := []string{"config.json", "model.safetensors", "vocab.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("downloaded = %v, want %v", got, want)
	}

	for _, name := range want {
		data, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != files[name] {
			t.Errorf("%s = %q, want %q", name, data, files[name])
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "README.md")); !os.IsNotExist(err) {
		t.Error("README.md should not be downloaded")
	}

	// No partial files left behind.
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".partial") {
			t.Errorf("partial file left behind: %s", e.Name())
		}
	}
}

func TestDownload_SendsToken(t *testing.T) {
	const modelID = "gated/private-model"
	srv := hubServer(t, modelID, map[string]string{"config.json": "{}"}, "Bearer hf_secret")
	c := NewClientWithBaseURL(srv.URL, "hf_secret")

	if _, err := c.ListFiles(context.Background(), modelID); err != nil {
		t.Fatalf("ListFiles with token: %v", err)
	}

	// Without the token the same request is rejected.
	anon := NewClientWithBaseURL(srv.URL, "")
	if _, err := anon.ListFiles(context.Background(), modelID); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestListFiles_UnknownModel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := NewClientWithBaseURL(srv.URL, "")

	_, err := c.ListFiles(context.Background(), "no/such-model")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 error, got %v", err)
	}
}

func TestListFiles_NoArtifacts(t *testing.T) {
	const modelID = "empty/model"
	srv := hubServer(t, modelID, map[string]string{"README.md": "docs only"}, "")
	c := NewClientWithBaseURL(srv.URL, "")

	if _, err := c.ListFiles(context.Background(), modelID); err == nil {
		t.Fatal("expected error for repo with no artifact files")
	}
}
