package capability

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/osgrid/metaviewer/internal/httputil"
)

func TestRequestCapabilitiesDecodesMap(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, `<?xml version="1.0" encoding="UTF-8"?><llsd><map>`+
		`<key>GetMesh</key><string>https://sim.example/cap/mesh</string>`+
		`<key>GetTexture</key><string>https://sim.example/cap/texture</string>`+
		`</map></llsd>`)

	client := New(mock)
	caps, err := client.RequestCapabilities(context.Background(), "https://sim.example/seed", []string{"GetMesh", "GetTexture"})
	if err != nil {
		t.Fatalf("RequestCapabilities: %v", err)
	}
	if caps["GetMesh"] != "https://sim.example/cap/mesh" {
		t.Fatalf("unexpected GetMesh url: %q", caps["GetMesh"])
	}
	if mock.RequestCount() != 1 {
		t.Fatalf("expected 1 request, got %d", mock.RequestCount())
	}
	req := mock.GetRequest(0)
	if req.Method != "POST" {
		t.Fatalf("expected POST, got %s", req.Method)
	}
}

func TestRequestCapabilitiesSurfacesNonOKStatus(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(503, "")

	client := New(mock)
	if _, err := client.RequestCapabilities(context.Background(), "https://sim.example/seed", []string{"GetMesh"}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestRequestCapabilitiesRejectsMalformedXML(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, "not xml at all")

	client := New(mock)
	if _, err := client.RequestCapabilities(context.Background(), "https://sim.example/seed", []string{"GetMesh"}); err == nil {
		t.Fatal("expected error for malformed xml")
	}
}

func TestFetchAssetBuildsQueryURL(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, "binary-asset-body")

	client := New(mock)
	id := uuid.MustParse("12345678-1234-1234-1234-1234567890ab")
	data, err := client.FetchAsset(context.Background(), "https://sim.example/cap/mesh", CategoryMesh, id)
	if err != nil {
		t.Fatalf("FetchAsset: %v", err)
	}
	if string(data) != "binary-asset-body" {
		t.Fatalf("unexpected body: %q", data)
	}
	req := mock.GetRequest(0)
	if !strings.Contains(req.URL.String(), "mesh_id=12345678-1234-1234-1234-1234567890ab") {
		t.Fatalf("unexpected request url: %s", req.URL.String())
	}
}

func TestFetchAssetSurfacesNonOKStatus(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(404, "")

	client := New(mock)
	if _, err := client.FetchAsset(context.Background(), "https://sim.example/cap/mesh", CategoryMesh, uuid.New()); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
