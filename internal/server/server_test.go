package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/franckalain/foodrescue/internal/inventory"
	"github.com/franckalain/foodrescue/internal/metrics"
	"github.com/franckalain/foodrescue/internal/ml"
	"github.com/franckalain/foodrescue/internal/models"
	"github.com/franckalain/foodrescue/internal/verification"
)

// scriptedModel answers with a canned response per image. Images listed in
// hold block until released.
type scriptedModel struct {
	mu      sync.Mutex
	answers map[string]string
	hold    map[string]chan struct{}
}

func (m *scriptedModel) Load(ctx context.Context) error { return nil }
func (m *scriptedModel) Close() error                   { return nil }

func (m *scriptedModel) Assess(ctx context.Context, req ml.Request) ([]byte, error) {
	m.mu.Lock()
	answer := m.answers[string(req.Image)]
	hold := m.hold[string(req.Image)]
	m.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(answer), nil
}

func answer(quality float64, category string) string {
	b, _ := json.Marshal(map[string]any{
		"isSafe":            true,
		"isHalal":           true,
		"halalScore":        95,
		"reasoning":         "looks fresh",
		"hygieneScore":      90,
		"qualityPercentage": quality,
		"detectedCategory":  category,
		"detectedItems":     []map[string]string{{"name": "rice", "category": "Carb"}},
	})
	return string(b)
}

type reply struct {
	Type    string            `json:"type"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

type stateReply struct {
	Stage          string                     `json:"stage"`
	Publishable    bool                       `json:"publishable"`
	MinimumQuality float64                    `json:"minimum_quality"`
	Record         *models.VerificationRecord `json:"record"`
}

type ServerSuite struct {
	suite.Suite
	model *scriptedModel
	store *inventory.SQLiteStore
	reg   *prometheus.Registry
	http  *httptest.Server
}

func (s *ServerSuite) SetupTest() {
	s.model = &scriptedModel{
		answers: map[string]string{
			"good-photo": answer(88, "Rice"),
			"poor-photo": answer(70.01, "Vegetables"),
			"slow-photo": answer(95, "Beef"),
		},
		hold: map[string]chan struct{}{},
	}

	store, err := inventory.NewSQLiteStore(filepath.Join(s.T().TempDir(), "inventory.db"))
	s.Require().NoError(err)
	s.store = store

	s.reg = prometheus.NewRegistry()
	m := metrics.New(s.reg)
	pipeline := verification.NewPipeline(
		ml.NewAnalyzer(s.model, ml.WithMetrics(m)),
		verification.NewAggregator(),
	)
	srv := New(pipeline, store, WithMetrics(m, s.reg))
	s.http = httptest.NewServer(srv.Router(""))
}

func (s *ServerSuite) TearDownTest() {
	s.http.Close()
	s.Require().NoError(s.store.Close())
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })

	first := s.read(conn)
	s.Require().Equal("state", first.Type)
	return conn
}

func (s *ServerSuite) send(conn *websocket.Conn, msgType string, data any) {
	s.Require().NoError(conn.WriteJSON(map[string]any{"type": msgType, "data": data}))
}

func (s *ServerSuite) read(conn *websocket.Conn) reply {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var r reply
	s.Require().NoError(conn.ReadJSON(&r))
	return r
}

func (s *ServerSuite) readState(conn *websocket.Conn, wantType string) stateReply {
	r := s.read(conn)
	s.Require().Equal(wantType, r.Type, "message: %s", r.Message)
	var st stateReply
	s.Require().NoError(json.Unmarshal(r.Data, &st))
	return st
}

func photo(name string) map[string]string {
	return map[string]string{"image": base64.StdEncoding.EncodeToString([]byte(name))}
}

func details() map[string]string {
	return map[string]string{
		"food_name":   "Nasi Kuning",
		"ingredients": "rice, turmeric, coconut milk",
		"storage":     "room_temp",
		"quantity":    "1",
		"unit":        "kg",
		"packaging":   "no_plastic",
	}
}

func (s *ServerSuite) TestPublishFlow() {
	conn := s.dial()

	s.send(conn, "details", details())
	st := s.readState(conn, "state")
	s.Equal("capturing_photo", st.Stage)
	s.InDelta(verification.DefaultPublishThreshold, st.MinimumQuality, 1e-9)

	s.send(conn, "photo", photo("good-photo"))
	s.Equal("analyzing", s.readState(conn, "state").Stage)

	review := s.readState(conn, "review")
	s.Equal("reviewing_result", review.Stage)
	s.True(review.Publishable)
	s.Require().NotNil(review.Record)
	s.Equal(models.CategoryRice, review.Record.DetectedCategory)
	s.Equal(1000.0, review.Record.Submission.WeightGram)

	s.send(conn, "publish", nil)
	r := s.read(conn)
	s.Require().Equal("published", r.Type, "message: %s", r.Message)
	var listing models.Listing
	s.Require().NoError(json.Unmarshal(r.Data, &listing))
	s.NotEmpty(listing.ID)
	s.Equal(models.ListingAvailable, listing.Status)

	s.Equal("collecting_details", s.readState(conn, "state").Stage)

	s.send(conn, "get_listings", nil)
	r = s.read(conn)
	s.Require().Equal("listings", r.Type)
	var listings []models.Listing
	s.Require().NoError(json.Unmarshal(r.Data, &listings))
	s.Require().Len(listings, 1)
	s.Equal(listing.ID, listings[0].ID)

	s.send(conn, "get_impact", nil)
	r = s.read(conn)
	s.Require().Equal("impact", r.Type)
	var totals models.ImpactTotals
	s.Require().NoError(json.Unmarshal(r.Data, &totals))
	s.Equal(1, totals.Listings)
	s.Equal(listing.Record.Impact.TotalPoints, totals.TotalPoints)
}

func (s *ServerSuite) TestBelowThresholdCannotPublish() {
	conn := s.dial()

	s.send(conn, "details", details())
	s.readState(conn, "state")
	s.send(conn, "photo", photo("poor-photo"))
	s.readState(conn, "state")

	review := s.readState(conn, "review")
	s.False(review.Publishable)

	s.send(conn, "publish", nil)
	r := s.read(conn)
	s.Equal("error", r.Type)
	s.Contains(r.Message, "threshold")

	s.send(conn, "retry", nil)
	s.Equal("capturing_photo", s.readState(conn, "state").Stage)
}

func (s *ServerSuite) TestValidationErrorsCarryFields() {
	conn := s.dial()

	form := details()
	form["food_name"] = ""
	form["quantity"] = "-2"
	s.send(conn, "details", form)

	r := s.read(conn)
	s.Require().Equal("error", r.Type)
	s.Contains(r.Fields, "food_name")
	s.Contains(r.Fields, "quantity")

	s.send(conn, "state", nil)
	s.Equal("collecting_details", s.readState(conn, "state").Stage)
}

func (s *ServerSuite) TestAbandonedAnalysisIsNotReported() {
	release := make(chan struct{})
	s.model.mu.Lock()
	s.model.hold["slow-photo"] = release
	s.model.mu.Unlock()

	conn := s.dial()
	s.send(conn, "details", details())
	s.readState(conn, "state")

	s.send(conn, "photo", photo("slow-photo"))
	s.Equal("analyzing", s.readState(conn, "state").Stage)

	s.send(conn, "back", nil)
	s.Equal("capturing_photo", s.readState(conn, "state").Stage)

	s.send(conn, "photo", photo("good-photo"))
	s.Equal("analyzing", s.readState(conn, "state").Stage)
	review := s.readState(conn, "review")
	s.Require().NotNil(review.Record)
	s.Equal(models.CategoryRice, review.Record.DetectedCategory)

	close(release)

	// The slow result must not replace the current review.
	s.send(conn, "state", nil)
	st := s.readState(conn, "state")
	s.Equal("reviewing_result", st.Stage)
	s.Require().NotNil(st.Record)
	s.Equal(models.CategoryRice, st.Record.DetectedCategory)
}

func (s *ServerSuite) TestProtocolErrors() {
	conn := s.dial()

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	s.Equal("Invalid message format", s.read(conn).Message)

	s.send(conn, "teleport", nil)
	s.Equal("Unknown message type", s.read(conn).Message)

	s.send(conn, "publish", nil)
	s.Equal("Action not available at this step", s.read(conn).Message)

	s.send(conn, "details", details())
	s.readState(conn, "state")
	s.send(conn, "photo", map[string]string{"image": "%%%"})
	s.Equal("Invalid image format", s.read(conn).Message)
}

func (s *ServerSuite) TestHTTPEndpoints() {
	resp, err := http.Get(s.http.URL + "/health")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.http.URL + "/api/config/quality")
	s.Require().NoError(err)
	var q map[string]float64
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&q))
	resp.Body.Close()
	s.InDelta(70.01, q["minimum_quality"], 1e-9)

	resp, err = http.Get(s.http.URL + "/api/listings?limit=0")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(s.http.URL + "/api/listings/missing")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(s.http.URL + "/metrics")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestListingEndpointsServeStoredListings(t *testing.T) {
	store, err := inventory.NewSQLiteStore(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	defer store.Close()

	rec := verification.NewAggregator().Finalize(models.AnalysisResult{
		IsSafe:            true,
		QualityPercentage: 90,
		DetectedCategory:  models.CategoryBeef,
	}, models.SubmissionContext{FoodName: "Rendang", WeightGram: 1000, PackagingType: models.PackagingNoPlastic})
	listing, err := store.Publish(context.Background(), rec)
	require.NoError(t, err)

	srv := New(verification.NewPipeline(nil, nil), store, WithMetrics(nil, prometheus.NewRegistry()))
	ts := httptest.NewServer(srv.Router(""))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/listings/" + listing.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Listing
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, listing.ID, got.ID)
	assert.Equal(t, 240, got.Record.Impact.TotalPoints)

	resp2, err := http.Get(ts.URL + "/api/impact")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var totals models.ImpactTotals
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&totals))
	assert.Equal(t, 1, totals.Listings)
	assert.Equal(t, 240, totals.TotalPoints)
}
