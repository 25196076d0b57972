package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"ropatopia/internal/model"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1024*1024 + 10*1024, "1.01 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.bytes); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestUpload_RejectsTextFileWithoutCallingBackend(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("/ingest-file", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"batch_id":"b1"}`)
	})
	svc := NewUploadService(h.gateway, 50, nil)

	_, err := svc.Upload(context.Background(), h.sess, UploadInput{
		Company: "Acme",
		File:    fileHeader(t, "notes.txt", "text/plain", []byte("hello")),
	})
	if err == nil || err.Error() != "Only PDF, XLSX, and CSV files are allowed." {
		t.Fatalf("err = %v", err)
	}
	if h.backend.total() != 0 {
		t.Errorf("backend was called %d times", h.backend.total())
	}
}

func TestUpload_RejectsTextFileSniffedAsCSV(t *testing.T) {
	h := newHarness(t)
	svc := NewUploadService(h.gateway, 50, nil)

	_, err := svc.Upload(context.Background(), h.sess, UploadInput{
		Company: "Acme",
		File:    fileHeader(t, "notes.txt", "application/octet-stream", []byte("name,email\nann,ann@example.test\nbob,bob@example.test\n")),
	})
	if err == nil || err.Error() != "Only PDF, XLSX, and CSV files are allowed." {
		t.Fatalf("err = %v", err)
	}
	if h.backend.total() != 0 {
		t.Errorf("backend was called %d times", h.backend.total())
	}
}

func TestNewFileInfo_SniffsTypeForDisplay(t *testing.T) {
	info, err := NewFileInfo(fileHeader(t, "notes.txt", "application/octet-stream", []byte("name,email\nann,ann@example.test\n")))
	if err != nil {
		t.Fatalf("NewFileInfo: %v", err)
	}
	if info.DeclaredType != "application/octet-stream" {
		t.Errorf("declared = %q", info.DeclaredType)
	}
	if info.Type == "application/octet-stream" || info.Type == "" {
		t.Errorf("type = %q, want a sniffed type", info.Type)
	}
	if IsAllowedUpload(info) {
		t.Error("sniffed type allowed the upload")
	}
}

func TestUpload_Validation(t *testing.T) {
	h := newHarness(t)
	svc := NewUploadService(h.gateway, 50, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, h.sess, UploadInput{Company: "  "}); err == nil || err.Error() != "Please enter a company name." {
		t.Errorf("blank company: %v", err)
	}
	if _, err := svc.Upload(ctx, h.sess, UploadInput{Company: "Acme"}); err == nil || err.Error() != "Please select a file to upload." {
		t.Errorf("no file: %v", err)
	}
}

func TestUpload_AcceptsByExtensionAndDefaultsTemplate(t *testing.T) {
	h := newHarness(t)
	var template, company string
	h.backend.handle("/ingest-file", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		template = r.FormValue("template_type")
		company = r.FormValue("company")
		respondJSON(w, http.StatusOK, `{"batch_id":"batch-7"}`)
	})
	svc := NewUploadService(h.gateway, 50, nil)

	res, err := svc.Upload(context.Background(), h.sess, UploadInput{
		Company: " Acme ",
		File:    fileHeader(t, "activities.CSV", "application/octet-stream", []byte("activity\nPayroll\n")),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.BatchID != "batch-7" || res.CompanyName != "Acme" {
		t.Errorf("result = %+v", res)
	}
	if template != "a" || company != "Acme" {
		t.Errorf("template = %q company = %q", template, company)
	}
	if len(res.File.ID) != 9 {
		t.Errorf("file id = %q", res.File.ID)
	}
}

func TestIsAllowedUpload(t *testing.T) {
	tests := []struct {
		info model.FileInfo
		want bool
	}{
		{model.FileInfo{Name: "a.bin", DeclaredType: "application/pdf"}, true},
		{model.FileInfo{Name: "a.bin", DeclaredType: "text/csv; charset=utf-8"}, true},
		{model.FileInfo{Name: "sheet.xlsx", Type: "Unknown"}, true},
		{model.FileInfo{Name: "notes.txt", DeclaredType: "text/plain"}, false},
		{model.FileInfo{Name: "notes.txt", Type: "text/csv", DeclaredType: "application/octet-stream"}, false},
	}
	for _, tt := range tests {
		if got := IsAllowedUpload(&tt.info); got != tt.want {
			t.Errorf("IsAllowedUpload(%+v) = %v", tt.info, got)
		}
	}
}

func TestSelectActivities_RequiresOne(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("/session", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"session_id":"s9"}`)
	})
	svc := NewActivityService(h.gateway, nil)

	_, err := svc.Select(context.Background(), h.sess, SelectActivitiesInput{BatchID: "b1", Company: "Acme"})
	if err == nil || err.Error() != "Please select an activity." {
		t.Fatalf("err = %v", err)
	}
	if h.backend.count("/session") != 0 {
		t.Fatal("session create was called")
	}

	id, err := svc.Select(context.Background(), h.sess, SelectActivitiesInput{BatchID: "b1", Company: "Acme", Activities: []string{"Payroll"}})
	if err != nil || id != "s9" {
		t.Fatalf("Select = %q, %v", id, err)
	}
}

func TestListActivities_FallsBack(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("/list/processing_activities", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("batch_id") == "broken" {
			respondJSON(w, http.StatusOK, `"not a list"`)
			return
		}
		respondJSON(w, http.StatusOK, `{"processing_activities":["Payroll"]}`)
	})
	svc := NewActivityService(h.gateway, nil)
	ctx := context.Background()

	if got := svc.List(ctx, h.sess, "b1"); got.Fallback || len(got.Activities) != 1 {
		t.Errorf("b1: %+v", got)
	}
	for _, batch := range []string{"", "broken"} {
		got := svc.List(ctx, h.sess, batch)
		if !got.Fallback || len(got.Activities) != len(DefaultActivities) {
			t.Errorf("%q: %+v", batch, got)
		}
	}
}

func TestMergePreliminaryFields(t *testing.T) {
	var server model.FieldSet
	raw := `{
		"jurisdiction": {"question": "Where?", "type": "text", "options": [], "required": false},
		"domain": {"question": "Which domain?", "type": "select", "options": ["Health"], "required": true},
		"company_name": {"question": "Company?", "type": "text", "options": [], "required": true}
	}`
	if err := json.Unmarshal([]byte(raw), &server); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fields := MergePreliminaryFields(server)
	var ids []string
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	if strings.Join(ids, ",") != "processing_activity,jurisdiction,domain,company_name" {
		t.Fatalf("ids = %v", ids)
	}
	if fields[3].Question != "Company?" {
		t.Errorf("server company field replaced: %+v", fields[3])
	}

	err := ValidatePreliminary(fields, map[string]string{"processing_activity": "Payroll", "domain": "Health", "company_name": " "})
	if err == nil || err.Error() != `Please answer the required question: "Company?"` {
		t.Errorf("err = %v", err)
	}
}

func TestFieldSet_KeepsServerOrder(t *testing.T) {
	var set model.FieldSet
	if err := json.Unmarshal([]byte(`{"z":{"question":"Z?"},"a":{"question":"A?"},"z":{"question":"Z again?"}}`), &set); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if strings.Join(set.Order, ",") != "z,a" || set.Fields["z"].Question != "Z again?" {
		t.Errorf("set = %+v", set)
	}
	out, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(out), `{"z":`) {
		t.Errorf("marshal order lost: %s", out)
	}

	var empty model.FieldSet
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || len(empty.Order) != 0 {
		t.Errorf("null: %+v, %v", empty, err)
	}
	if err := json.Unmarshal([]byte(`[1]`), &empty); err == nil {
		t.Error("array accepted as field set")
	}
}

func TestPreliminarySubmit_StartsSession(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("/ropa/preliminary-questions", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"success":true,"data":{"jurisdiction":{"question":"Where?","type":"text","options":[],"required":false}}}`)
	})
	var sent map[string]string
	h.backend.handle("/ropa/start-session", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		respondJSON(w, http.StatusOK, `{"success":true,"data":{"session_id":"r5"}}`)
	})
	id, err := NewPreliminaryService(h.gateway, nil).Submit(context.Background(), h.sess, map[string]string{
		"processing_activity": "Payroll",
		"company_name":        "Acme",
		"unknown":             "dropped",
	})
	if err != nil || id != "r5" {
		t.Fatalf("Submit = %q, %v", id, err)
	}
	if sent["company_name"] != "Acme" || sent["unknown"] != "" {
		t.Errorf("sent = %v", sent)
	}
}
