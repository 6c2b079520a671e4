package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/metrics"
	"elevator-status-monitor/internal/model"
	"elevator-status-monitor/internal/parse"
	"elevator-status-monitor/internal/similarity"
)

// Result is the outcome of resolving every configured location group.
type Result struct {
	Equipments []model.Equipment
	Errors     []error
}

// ErrorStrings renders the collected errors as display strings.
func (r Result) ErrorStrings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Resolver queries the equipment API and matches search labels to equipment records.
type Resolver struct {
	client    *http.Client
	baseURL   string
	token     string
	accuracy  int
	threshold float64
	log       *zap.Logger
}

// NewResolver creates a Resolver from the API and matcher configuration.
func NewResolver(api config.APIConfig, matcher config.MatcherConfig, log *zap.Logger) *Resolver {
	var transport http.RoundTripper = &http.Transport{}
	if api.HTTPProxy != "" {
		proxyURL, err := url.Parse(api.HTTPProxy)
		if err != nil {
			log.Warn("invalid proxy URL, requests will not use a proxy",
				zap.String("proxy", api.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	threshold := matcher.Threshold
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}

	timeout := api.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}

	return &Resolver{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:   api.URL,
		token:     api.Token,
		accuracy:  api.AccuracyMeters,
		threshold: threshold,
		log:       log,
	}
}

// ResolveAll resolves every group in order. A failing group contributes exactly one
// error and never affects its siblings.
func (r *Resolver) ResolveAll(ctx context.Context, groups []model.SearchGroup) Result {
	var result Result
	for _, group := range groups {
		equipments, err := r.ResolveGroup(ctx, group)
		if err != nil {
			metrics.GroupResolutions.WithLabelValues(metrics.OutcomeFailure).Inc()
			r.log.Warn("failed to resolve station", zap.String("station", group.Label()), zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}
		metrics.GroupResolutions.WithLabelValues(metrics.OutcomeSuccess).Inc()
		result.Equipments = append(result.Equipments, equipments...)
	}
	return result
}

// ResolveGroup queries the API around the group's coordinates and returns one
// equipment record per search label, in label order. The first label without a match
// fails the whole group.
func (r *Resolver) ResolveGroup(ctx context.Context, group model.SearchGroup) ([]model.Equipment, error) {
	body, err := r.fetch(ctx, group)
	if err != nil {
		return nil, err
	}

	features, err := decodeFeatures(body)
	if err != nil {
		return nil, err
	}

	candidates, err := parse.ParseFeatureList(features)
	if err != nil {
		return nil, err
	}

	index := similarity.New(similarity.WithThreshold(r.threshold))
	for _, candidate := range candidates {
		index.Add(candidate.Name)
	}

	results := make([]model.Equipment, 0, len(group.EquipmentSearches))
	for _, search := range group.EquipmentSearches {
		match, ok := index.Best(search)
		if !ok {
			return nil, &parse.EquipmentNotFoundError{Query: search}
		}
		equipment, ok := findByName(candidates, match.Text)
		if !ok {
			return nil, &parse.EquipmentNotFoundError{Query: search}
		}
		r.log.Debug("matched equipment",
			zap.String("station", group.Label()),
			zap.String("search", search),
			zap.String("name", equipment.Name),
			zap.Float64("score", match.Score))
		results = append(results, equipment)
	}
	return results, nil
}

func findByName(equipments []model.Equipment, name string) (model.Equipment, bool) {
	for _, equipment := range equipments {
		if equipment.Name == name {
			return equipment, true
		}
	}
	return model.Equipment{}, false
}

// fetch performs the single API request for a group and returns the raw body.
func (r *Resolver) fetch(ctx context.Context, group model.SearchGroup) ([]byte, error) {
	endpoint, err := r.requestURL(group)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	metrics.APIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := "No text received!"
		if b, readErr := io.ReadAll(resp.Body); readErr == nil {
			text = string(b)
		}
		return nil, &parse.HTTPRequestError{StatusCode: resp.StatusCode, Body: text}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (r *Resolver) requestURL(group model.SearchGroup) (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url %q: %w", r.baseURL, err)
	}
	q := u.Query()
	q.Set("appToken", r.token)
	q.Set("latitude", strconv.FormatFloat(group.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(group.Longitude, 'f', -1, 64))
	q.Set("accuracy", strconv.Itoa(r.accuracy))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
