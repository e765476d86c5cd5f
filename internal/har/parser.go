// Package har turns browser traffic captures into draft endpoint records.
package har

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type harFile struct {
	Log struct {
		Entries []entry `json:"entries"`
	} `json:"log"`
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type entry struct {
	StartedDateTime string `json:"startedDateTime"`
	Request         struct {
		Method   string   `json:"method"`
		URL      string   `json:"url"`
		Headers  []header `json:"headers"`
		PostData struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"postData"`
	} `json:"request"`
	Response struct {
		Status  int `json:"status"`
		Content struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"content"`
	} `json:"response"`
}

// Capture is one recorded request and its response.
type Capture struct {
	Time         time.Time
	Method       string
	Host         string
	Path         string
	Query        url.Values
	Headers      map[string]string
	RequestBody  string
	RequestMime  string
	Status       int
	ResponseBody string
	ResponseMime string
}

// Parse reads a HAR document. Captures come back in chronological order;
// binary bodies are dropped.
func Parse(r io.Reader) ([]Capture, error) {
	var hf harFile
	if err := json.NewDecoder(r).Decode(&hf); err != nil {
		return nil, fmt.Errorf("decode har: %w", err)
	}
	out := make([]Capture, 0, len(hf.Log.Entries))
	for i, e := range hf.Log.Entries {
		ts, err := time.Parse(time.RFC3339Nano, e.StartedDateTime)
		if err != nil {
			return nil, fmt.Errorf("entry %d: parse startedDateTime: %w", i, err)
		}
		u, err := url.Parse(e.Request.URL)
		if err != nil {
			return nil, fmt.Errorf("entry %d: parse request url: %w", i, err)
		}
		headers := make(map[string]string, len(e.Request.Headers))
		for _, h := range e.Request.Headers {
			headers[h.Name] = h.Value
		}
		out = append(out, Capture{
			Time:         ts,
			Method:       strings.ToUpper(e.Request.Method),
			Host:         u.Host,
			Path:         u.Path,
			Query:        u.Query(),
			Headers:      headers,
			RequestBody:  decodeBody(e.Request.PostData.Text, e.Request.PostData.Encoding, e.Request.PostData.MimeType),
			RequestMime:  e.Request.PostData.MimeType,
			Status:       e.Response.Status,
			ResponseBody: decodeBody(e.Response.Content.Text, e.Response.Content.Encoding, e.Response.Content.MimeType),
			ResponseMime: e.Response.Content.MimeType,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func decodeBody(text, encoding, mimeType string) string {
	if text == "" || isBinaryContentType(mimeType) {
		return ""
	}
	if strings.EqualFold(encoding, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	return text
}

func isBinaryContentType(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	return strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") || mt == "application/octet-stream"
}
