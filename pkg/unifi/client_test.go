package unifi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkero/unifi-dns-sync/pkg/provider"
	"github.com/bkero/unifi-dns-sync/pkg/record"
	"github.com/bkero/unifi-dns-sync/pkg/unifi/unifitest"
)

var _ provider.Provider = (*Client)(nil)

func newTestClient(t *testing.T, seed []*record.Record) (*Client, *unifitest.Server) {
	t.Helper()
	srv := unifitest.NewServer(seed)
	t.Cleanup(srv.Close)
	s, err := Authenticate(context.Background(), testConfig(srv), nil)
	require.NoError(t, err)
	return NewClient(s, "", nil), srv
}

func TestClient_Records(t *testing.T) {
	c, srv := newTestClient(t, []*record.Record{
		{ID: "1", Key: "a.example.com", Value: "10.0.0.1", RecordType: "A", Enabled: true},
		{ID: "2", Key: "mail.example.com", Value: "mx.example.com", RecordType: "CNAME", Enabled: true},
	})

	recs, err := c.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a.example.com", recs[0].Key)
	assert.Equal(t, "CNAME", recs[1].RecordType, "non-A records are returned unfiltered")

	last := srv.Requests()[len(srv.Requests())-1]
	assert.Equal(t, http.MethodGet, last.Method)
	assert.Equal(t, "/proxy/network/v2/api/site/default/static-dns", last.Path)
}

func TestClient_Records_Error(t *testing.T) {
	c, srv := newTestClient(t, nil)
	srv.ListStatus = http.StatusBadGateway

	_, err := c.Records(context.Background())
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadGateway, reqErr.Status)
}

func TestClient_Create_Payload(t *testing.T) {
	c, srv := newTestClient(t, nil)

	got, err := c.Create(context.Background(), "new.example.com", "10.0.10.31")
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)

	last := srv.Requests()[len(srv.Requests())-1]
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/proxy/network/v2/api/site/default/static-dns", last.Path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body, &body))
	assert.Equal(t, map[string]any{
		"record_type": "A",
		"value":       "10.0.10.31",
		"key":         "new.example.com",
		"enabled":     true,
	}, body)
}

// A record created with hostname H and IP T is listed back with key H,
// value T and type A.
func TestClient_CreateThenList_RoundTrip(t *testing.T) {
	c, _ := newTestClient(t, nil)

	created, err := c.Create(context.Background(), "rt.example.com", "10.9.8.7")
	require.NoError(t, err)

	recs, err := c.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, created.ID, recs[0].ID)
	assert.Equal(t, "rt.example.com", recs[0].Key)
	assert.Equal(t, "10.9.8.7", recs[0].Value)
	assert.Equal(t, record.RecordTypeA, recs[0].RecordType)
	assert.True(t, recs[0].Enabled)
}

func TestClient_Create_Rejected(t *testing.T) {
	c, srv := newTestClient(t, nil)
	srv.CreateStatus["dup.example.com"] = http.StatusBadRequest

	_, err := c.Create(context.Background(), "dup.example.com", "10.0.0.1")
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
	assert.Contains(t, reqErr.Body, "dup.example.com")
}

func TestClient_Delete(t *testing.T) {
	c, srv := newTestClient(t, []*record.Record{
		{ID: "abc", Key: "old.example.com", Value: "10.0.0.1", RecordType: "A", Enabled: true},
	})

	require.NoError(t, c.Delete(context.Background(), "abc"))
	assert.Empty(t, srv.Records())

	last := srv.Requests()[len(srv.Requests())-1]
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.Equal(t, "/proxy/network/v2/api/site/default/static-dns/abc", last.Path)
}

func TestClient_Delete_AlreadyGone(t *testing.T) {
	c, _ := newTestClient(t, nil)

	err := c.Delete(context.Background(), "missing")
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusNotFound, reqErr.Status)
}

func TestClient_Site(t *testing.T) {
	srv := unifitest.NewServer(nil)
	defer srv.Close()
	s, err := Authenticate(context.Background(), testConfig(srv), nil)
	require.NoError(t, err)

	_, err = NewClient(s, "branch1", nil).Records(context.Background())
	require.NoError(t, err)

	last := srv.Requests()[len(srv.Requests())-1]
	assert.Equal(t, "/proxy/network/v2/api/site/branch1/static-dns", last.Path)
}

// stubCaller returns a canned response for every call.
type stubCaller struct {
	resp *Response
	err  error
}

func (s *stubCaller) Call(context.Context, string, string, any) (*Response, error) {
	return s.resp, s.err
}

func TestClient_Create_UnusableEcho(t *testing.T) {
	c := newClient(&stubCaller{resp: &Response{Status: 200, Body: []byte("ok")}}, "", nil)

	got, err := c.Create(context.Background(), "x.example.com", "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "x.example.com", got.Key)
	assert.Equal(t, "10.0.0.9", got.Value)
	assert.Empty(t, got.ID)
}

func TestClient_Records_BadJSON(t *testing.T) {
	c := newClient(&stubCaller{resp: &Response{Status: 200, Body: []byte(`{"data":[]}`)}}, "", nil)

	_, err := c.Records(context.Background())
	assert.Error(t, err)
}
