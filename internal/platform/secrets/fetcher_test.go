package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const mongoResource = "projects/shop/secrets/mongo-uri/versions/latest"

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	return path
}

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values[mongoResource] = "mongodb://remote"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("shop"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(ctx, "secret://mongo-uri")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "mongodb://remote" {
			t.Fatalf("unexpected value %q", got)
		}
	}
	if calls := client.callCount(mongoResource); calls != 1 {
		t.Fatalf("expected a single remote call, got %d", calls)
	}
}

func TestResolvePinnedVersionAndProject(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values["projects/other/secrets/mongo-uri/versions/3"] = "pinned"

	fetcher, _ := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("shop"), WithFallbackFile(""))
	got, err := fetcher.Resolve(ctx, "secret://mongo-uri?version=3&project=other")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "pinned" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestResolveFallsBackWhenPermissionDenied(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errors[mongoResource] = status.Error(codes.PermissionDenied, "denied")

	fetcher, _ := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("shop"),
		WithFallbackFile(writeFallback(t, "# local\nsm://mongo-uri=mongodb://localhost\n")),
	)
	got, err := fetcher.Resolve(ctx, "secret://mongo-uri")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "mongodb://localhost" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestResolveDoesNotFallbackOnNotFound(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errors[mongoResource] = status.Error(codes.NotFound, "missing")

	fetcher, _ := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("shop"),
		WithFallbackFile(writeFallback(t, "secret://mongo-uri=mongodb://localhost\n")),
	)
	if _, err := fetcher.Resolve(ctx, "secret://mongo-uri"); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestNewFetcherWithoutCredentialsUsesFallback(t *testing.T) {
	original := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { secretManagerClientFactory = original })

	fetcher, err := NewFetcher(context.Background(), WithFallbackFile(writeFallback(t, "secret://redis-password=hunter2\n")))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	got, err := fetcher.Resolve(context.Background(), "secret://redis-password")
	if err != nil || got != "hunter2" {
		t.Fatalf("expected fallback value, got %q (%v)", got, err)
	}
}

func TestParseReferenceRejectsOtherSchemes(t *testing.T) {
	if _, err := parseReference("https://example.com/secret"); err == nil {
		t.Fatal("expected scheme error")
	}
	if _, err := parseReference("secret://"); err == nil {
		t.Fatal("expected missing name error")
	}
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.GetName()
	f.counter[name]++
	if err := f.errors[name]; err != nil {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
