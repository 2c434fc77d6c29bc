package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"vaultseal.dev/internal/uploadclient"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "upload-files":
		runUpload(os.Args[2:])
	case "verify-file":
		runVerify(os.Args[2:])
	case "list-upload-ids":
		runListUploadIDs(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: upload-client <upload-files|verify-file|list-upload-ids> [flags]")
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload-files", flag.ExitOnError)
	apiKey := fs.String("api-key", "", "API key for authentication")
	apiSecret := fs.String("api-secret", "", "API secret for authentication")
	baseURL := fs.String("base-url", "http://localhost:8080", "upload server base URL")
	filesDir := fs.String("files-directory", "", "local directory containing files to upload")
	rootsDir := fs.String("roots-store-directory", "", "local directory to persist upload roots")
	fs.Parse(args)

	requireFlags(fs, map[string]string{
		"api-key": *apiKey, "api-secret": *apiSecret, "files-directory": *filesDir, "roots-store-directory": *rootsDir,
	})

	orch := newOrchestrator(*apiKey, *apiSecret, *baseURL, *rootsDir)
	result, err := orch.Upload(context.Background(), *filesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("uploaded id=%s root=%s\n", result.ID, result.RootHex)
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify-file", flag.ExitOnError)
	apiKey := fs.String("api-key", "", "API key for authentication")
	apiSecret := fs.String("api-secret", "", "API secret for authentication")
	baseURL := fs.String("base-url", "http://localhost:8080", "upload server base URL")
	rootsDir := fs.String("roots-store-directory", "", "local directory to persist upload roots")
	id := fs.String("id", "", "upload ID to verify")
	index := fs.Int("index", -1, "index of the file to verify")
	fs.Parse(args)

	requireFlags(fs, map[string]string{
		"api-key": *apiKey, "api-secret": *apiSecret, "roots-store-directory": *rootsDir, "id": *id,
	})
	if *index < 0 {
		fmt.Fprintln(os.Stderr, "verify-file: -index is required")
		os.Exit(1)
	}

	parsedID, err := uuid.Parse(*id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -id: %v\n", err)
		os.Exit(1)
	}

	orch := newOrchestrator(*apiKey, *apiSecret, *baseURL, *rootsDir)
	result, err := orch.Verify(context.Background(), parsedID, *index)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
		os.Exit(1)
	}

	if result.OK {
		fmt.Printf("File verification succeeded for id=%s, index=%d\n", parsedID, *index)
	} else {
		fmt.Fprintf(os.Stderr, "File verification failed for id=%s, index=%d\n", parsedID, *index)
		os.Exit(1)
	}
}

func runListUploadIDs(args []string) {
	fs := flag.NewFlagSet("list-upload-ids", flag.ExitOnError)
	rootsDir := fs.String("roots-store-directory", "", "local directory to persist upload roots")
	fs.Parse(args)

	requireFlags(fs, map[string]string{"roots-store-directory": *rootsDir})

	roots := uploadclient.NewRootStore(*rootsDir)
	ids, err := roots.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list-upload-ids failed: %v\n", err)
		os.Exit(1)
	}

	if len(ids) == 0 {
		fmt.Println("No upload IDs found.")
		return
	}
	fmt.Println("Upload IDs:")
	for _, id := range ids {
		fmt.Printf("- %s\n", id)
	}
}

func newOrchestrator(apiKey, apiSecret, baseURL, rootsDir string) *uploadclient.Orchestrator {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	api := uploadclient.NewAPIClient(uploadclient.Args{
		APIKey:        apiKey,
		APISecret:     apiSecret,
		BaseURL:       baseURL,
		CorrelationID: uuid.New(),
	})
	return uploadclient.NewOrchestrator(api, rootsDir)
}

func requireFlags(fs *flag.FlagSet, values map[string]string) {
	for name, value := range values {
		if value == "" {
			fmt.Fprintf(os.Stderr, "%s: -%s is required\n", fs.Name(), name)
			fs.Usage()
			os.Exit(1)
		}
	}
}
