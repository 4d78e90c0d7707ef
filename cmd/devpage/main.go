package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Tiny dev-only host page.
//
// This is NOT a profile platform. It renders a signup-style form whose field containers use the
// same classes as the real host, and loads the snapshot bootstrap and client script from the
// API so field toggling can be tried in a browser.

type field struct {
	ID   int
	Name string
	Key  string
}

type choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type pageData struct {
	APIURL      string
	TypeFieldID int
	Fields      []field
	Choices     []choice
}

var page = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Member type fields (dev)</title></head>
<body>
<form method="post" action="{{.APIURL}}/signup/validate">
{{range .Fields}}
  {{if eq .ID $.TypeFieldID}}
  <div class="editfield {{.Key}}">
    <label for="{{.Key}}">{{.Name}}</label>
    <select id="{{.Key}}" name="{{.Key}}">
      <option value="">-</option>
      {{range $.Choices}}<option value="{{.ID}}">{{.Label}}</option>{{end}}
    </select>
  </div>
  {{else}}
  <div class="editfield {{.Key}}">
    <label for="{{.Key}}">{{.Name}}</label>
    <input id="{{.Key}}" name="{{.Key}}" type="text">
  </div>
  {{end}}
{{end}}
  <button type="submit">Sign up</button>
</form>
<script src="{{.APIURL}}/snapshot.js"></script>
<script src="{{.APIURL}}/assets/mtcf.js"></script>
</body>
</html>
`))

func main() {
	port := getenv("PORT", "5557")
	apiURL := strings.TrimRight(getenv("API_URL", "http://localhost:8080"), "/")
	timeout := getenvDuration("TIMEOUT", 5*time.Second)
	fields, err := parseFields(getenv("FIELDS", "1:Name,5:Member type,12:Graduation year,13:Department"))
	if err != nil {
		log.Fatalf("invalid FIELDS: %v", err)
	}
	typeFieldID, err := strconv.Atoi(getenv("TYPE_FIELD_ID", "5"))
	if err != nil {
		log.Fatalf("invalid TYPE_FIELD_ID: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Render the form:
	//   GET /?lang=es
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		choices, err := fetchChoices(r.Context(), client, apiURL, r.URL.Query().Get("lang"))
		if err != nil {
			http.Error(w, "failed to load member types: "+err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Execute(w, pageData{
			APIURL:      apiURL,
			TypeFieldID: typeFieldID,
			Fields:      fields,
			Choices:     choices,
		}); err != nil {
			log.Printf("render: %v", err)
		}
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("devpage listening on :%s (api=%s type_field=%d)", port, apiURL, typeFieldID)
	log.Fatal(srv.ListenAndServe())
}

func fetchChoices(ctx context.Context, client *http.Client, apiURL, lang string) ([]choice, error) {
	u := apiURL + "/member-types"
	if lang != "" {
		u += "?lang=" + lang
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	var body struct {
		MemberTypes []choice `json:"memberTypes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.MemberTypes, nil
}

// parseFields reads "id:name,id:name" into fields sorted by id.
func parseFields(s string) ([]field, error) {
	var out []field
	for _, part := range strings.Split(s, ",") {
		idStr, name, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("expected id:name, got %q", part)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid field id %q", idStr)
		}
		out = append(out, field{ID: id, Name: strings.TrimSpace(name), Key: "field_" + strconv.Itoa(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
