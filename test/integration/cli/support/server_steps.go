package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

func (testCtx *TestContext) theAPIServerIsRunning() error {
	srv, err := StartAPIServer(filepath.Join(testCtx.WorkingDir, "api"))
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	testCtx.Server = srv
	return nil
}

func (testCtx *TestContext) requireServer() error {
	if testCtx.Server == nil {
		return errors.New("API server is not running")
	}
	return nil
}

// postForm sends a multipart form with one file and records the response.
func (testCtx *TestContext) postForm(path, fileName string, fields map[string]string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.path(fileName))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.Server.URL()+path, mw.FormDataContentType(), &body) //nolint:noctx // test client
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(raw)
	return nil
}

func (testCtx *TestContext) iUploadTo(fileName, path string) error {
	return testCtx.postForm(path, fileName, nil)
}

func (testCtx *TestContext) iUploadToWithTemplate(fileName, path, template string) error {
	return testCtx.postForm(path, fileName, map[string]string{"template": template})
}

func (testCtx *TestContext) iImportTheCalibrationThroughTheAPI(fileName, name string) error {
	return testCtx.postForm("/templates", fileName, map[string]string{"name": name})
}

func (testCtx *TestContext) iGET(path string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	resp, err := http.Get(testCtx.Server.URL() + path) //nolint:noctx // test client
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// iStreamOverTheWebsocket sends one document on /ws/extract and collects
// the progress messages up to the result.
func (testCtx *TestContext) iStreamOverTheWebsocket(fileName string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.path(fileName))
	if err != nil {
		return err
	}

	url := "ws" + strings.TrimPrefix(testCtx.Server.URL(), "http") + "/ws/extract"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(server.ExtractRequest{Filename: filepath.Base(fileName), Data: data}); err != nil {
		return err
	}

	testCtx.LastStreamProgress = nil
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		var msg server.ExtractMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		switch msg.Type {
		case server.MessageProgress:
			testCtx.LastStreamProgress = append(testCtx.LastStreamProgress, msg.Progress)
		case server.MessageResult:
			raw, err := json.Marshal(msg.Result)
			if err != nil {
				return err
			}
			testCtx.LastStreamResult = string(raw)
			return nil
		default:
			return fmt.Errorf("extraction failed: %s", msg.Error)
		}
	}
}

// theStreamedProgressShouldBe compares the progress values with repeats
// collapsed, since completion re-sends 100.
func (testCtx *TestContext) theStreamedProgressShouldBe(list string) error {
	var got []string
	for i, p := range testCtx.LastStreamProgress {
		if i > 0 && p == testCtx.LastStreamProgress[i-1] {
			continue
		}
		got = append(got, strconv.Itoa(p))
	}
	want := strings.ReplaceAll(list, " ", "")
	if strings.Join(got, ",") != want {
		return fmt.Errorf("streamed progress %v, want %s", got, want)
	}
	return nil
}

func (testCtx *TestContext) theStreamedResultShouldHavePages(n int) error {
	var res struct {
		Pages []json.RawMessage `json:"pages"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastStreamResult), &res); err != nil {
		return err
	}
	if len(res.Pages) != n {
		return fmt.Errorf("streamed result has %d pages, want %d", len(res.Pages), n)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the API server is running$`, testCtx.theAPIServerIsRunning)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with template "([^"]*)"$`, testCtx.iUploadToWithTemplate)
	sc.Step(`^I import the calibration "([^"]*)" as "([^"]*)" through the API$`, testCtx.iImportTheCalibrationThroughTheAPI)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^I stream "([^"]*)" over the extraction websocket$`, testCtx.iStreamOverTheWebsocket)
	sc.Step(`^the streamed progress should be "([^"]*)"$`, testCtx.theStreamedProgressShouldBe)
	sc.Step(`^the streamed result should have (\d+) pages$`, testCtx.theStreamedResultShouldHavePages)
}
