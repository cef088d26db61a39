package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zombor/receiptify/internal/analytics"
	"github.com/zombor/receiptify/internal/export"
	"github.com/zombor/receiptify/internal/kv"
	"github.com/zombor/receiptify/internal/metrics"
	"github.com/zombor/receiptify/internal/receipt"
	"github.com/zombor/receiptify/internal/scanning"
)

var _ = Describe("Server", func() {
	var (
		ctx         context.Context
		db          kv.Store
		scanner     *mockScanner
		m           *metrics.Metrics
		service     *receipt.Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
		now         time.Time
	)

	build := func() {
		service = receipt.NewServiceWithDeps(
			receipt.NewStore(db),
			receipt.NewSettingsStore(db),
			scanner,
			m,
			&sequentialIDs{},
			fixedTime{now: now},
		)
		server = NewServerWithMux(service, m, auth, http.NewServeMux())
		server.now = func() time.Time { return now }
	}

	// seed saves a manual receipt through the service
	seed := func(merchant, date string, total float64, category string) *receipt.Receipt {
		r, err := service.SaveManual(ctx, receipt.PartialFields{
			Merchant: merchant,
			Date:     date,
			Total:    ptr(total),
			Category: category,
		}, "")
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	doJSON := func(method, path string, v any) *http.Response {
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		return do(method, path, bytes.NewReader(data), "application/json")
	}

	decode := func(resp *http.Response, v any) {
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	upload := func(filename string, content []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(content)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return do(http.MethodPost, "/api/receipts/scan", body, writer.FormDataContentType())
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = kv.NewMemory()
		scanner = &mockScanner{
			receiptData: &scanning.ReceiptData{
				Merchant: "Cafe Mocha",
				Date:     "2024-03-10",
				Total:    ptr(45.50),
				Category: "Food",
			},
		}
		m = metrics.New()
		auth = BasicAuth{}
		now = time.Date(2024, 3, 12, 8, 30, 0, 0, time.UTC)
		build()
	})

	JustBeforeEach(func() {
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("handleListReceipts", func() {
		When("receipts exist", func() {
			BeforeEach(func() {
				seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
				seed("Metro Rail", "2024-03-11", 30, "Travel")
			})

			It("returns them newest first", func() {
				resp := do(http.MethodGet, "/api/receipts", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var receipts []*receipt.Receipt
				decode(resp, &receipts)
				Expect(receipts).To(HaveLen(2))
				Expect(receipts[0].Merchant).To(Equal("Metro Rail"))
			})

			It("filters by the search query", func() {
				resp := do(http.MethodGet, "/api/receipts?q=MOCHA", nil, "")
				var receipts []*receipt.Receipt
				decode(resp, &receipts)
				Expect(receipts).To(HaveLen(1))
				Expect(receipts[0].Merchant).To(Equal("Cafe Mocha"))
			})

			It("returns an empty array when nothing matches", func() {
				resp := do(http.MethodGet, "/api/receipts?q=nothing", nil, "")
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})

		When("no receipts exist", func() {
			It("returns an empty array", func() {
				resp := do(http.MethodGet, "/api/receipts", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})

		When("the store fails", func() {
			BeforeEach(func() {
				db = &failingKV{Memory: kv.NewMemory(), err: errors.New("disk on fire")}
				build()
			})

			It("returns Internal Server Error without leaking the cause", func() {
				resp := do(http.MethodGet, "/api/receipts", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(Equal("Internal server error"))
			})
		})
	})

	Describe("handleListMonths", func() {
		BeforeEach(func() {
			seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
			seed("Book Nook", "2024-02-02", 12, "Shopping")
		})

		It("groups receipts by month", func() {
			resp := do(http.MethodGet, "/api/receipts/months", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var groups []analytics.MonthGroup
			decode(resp, &groups)
			Expect(groups).To(HaveLen(2))
			Expect(groups[0].Key).To(Equal("February 2024"))
			Expect(groups[1].Key).To(Equal("March 2024"))
		})
	})

	Describe("handleScanReceipt", func() {
		When("extraction succeeds", func() {
			It("saves the receipt and returns Created", func() {
				resp := upload("receipt.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var result receipt.CaptureResult
				decode(resp, &result)
				Expect(result.Draft).To(BeNil())
				Expect(result.Receipt).NotTo(BeNil())
				Expect(result.Receipt.Merchant).To(Equal("Cafe Mocha"))
				Expect(result.Receipt.Currency).To(Equal("₹"))
				Expect(result.Receipt.Image).To(HavePrefix("data:image/jpeg;base64,"))

				stored, err := service.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(stored).To(HaveLen(1))
				Expect(testutil.ToFloat64(m.Extractions.WithLabelValues(metrics.OutcomeSuccess))).To(Equal(1.0))
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("model unavailable")
			})

			It("returns Accepted with a draft and saves nothing", func() {
				resp := upload("Corner Store.pdf", []byte("%PDF-1.4 fake"))
				Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

				var result receipt.CaptureResult
				decode(resp, &result)
				Expect(result.Receipt).To(BeNil())
				Expect(result.Draft).NotTo(BeNil())
				Expect(result.Draft.Fields.Merchant).To(Equal("Corner Store"))
				Expect(result.Draft.Fields.Date).To(Equal("2024-03-12"))
				Expect(result.Draft.Fields.Image).To(HavePrefix("data:application/pdf;base64,"))

				stored, err := service.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(stored).To(BeEmpty())
			})
		})

		When("no file is provided", func() {
			It("returns Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("note", "nothing attached")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp := do(http.MethodPost, "/api/receipts/scan", body, writer.FormDataContentType())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errBody map[string]string
				decode(resp, &errBody)
				Expect(errBody["error"]).To(ContainSubstring("No file was selected"))
			})
		})

		When("the body is not a multipart form", func() {
			It("returns Bad Request", func() {
				resp := do(http.MethodPost, "/api/receipts/scan", strings.NewReader(`{}`), "application/json")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errBody map[string]string
				decode(resp, &errBody)
				Expect(errBody["error"]).To(Equal("Error parsing form"))
			})
		})
	})

	Describe("handleCreateReceipt", func() {
		When("the fields are valid", func() {
			It("saves the receipt and returns Created", func() {
				resp := doJSON(http.MethodPost, "/api/receipts", map[string]any{
					"merchant": "Book Nook",
					"date":     "2024-03-01",
					"total":    12.5,
					"category": "shopping",
				})
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var saved receipt.Receipt
				decode(resp, &saved)
				Expect(saved.ID).To(Equal("id-1"))
				Expect(saved.Category).To(Equal(receipt.Shopping))
				Expect(saved.Total).To(Equal(12.5))
			})
		})

		When("the merchant is missing", func() {
			It("returns Bad Request with the validation error", func() {
				resp := doJSON(http.MethodPost, "/api/receipts", map[string]any{"total": 12.5})
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errBody map[string]string
				decode(resp, &errBody)
				Expect(errBody["error"]).To(ContainSubstring("merchant is required"))
			})
		})

		When("the body is not JSON", func() {
			It("returns Bad Request", func() {
				resp := do(http.MethodPost, "/api/receipts", strings.NewReader("nope"), "application/json")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleGetReceipt", func() {
		When("the receipt exists", func() {
			var saved *receipt.Receipt

			BeforeEach(func() {
				saved = seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
			})

			It("returns it", func() {
				resp := do(http.MethodGet, "/api/receipts/"+saved.ID, nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var found receipt.Receipt
				decode(resp, &found)
				Expect(found.ID).To(Equal(saved.ID))
				Expect(found.Merchant).To(Equal("Cafe Mocha"))
			})
		})

		When("the receipt does not exist", func() {
			It("returns Not Found", func() {
				resp := do(http.MethodGet, "/api/receipts/missing", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

				var errBody map[string]string
				decode(resp, &errBody)
				Expect(errBody["error"]).To(Equal("Receipt not found"))
			})
		})
	})

	Describe("handleEditReceipt", func() {
		var saved *receipt.Receipt

		BeforeEach(func() {
			saved = seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
		})

		It("replaces the fields and keeps the id", func() {
			resp := doJSON(http.MethodPut, "/api/receipts/"+saved.ID, map[string]any{
				"merchant": "Cafe Latte",
				"date":     "2024-03-10",
				"total":    50,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var updated receipt.Receipt
			decode(resp, &updated)
			Expect(updated.ID).To(Equal(saved.ID))
			Expect(updated.Merchant).To(Equal("Cafe Latte"))
			Expect(updated.Total).To(Equal(50.0))
		})

		It("returns Bad Request for invalid fields", func() {
			resp := doJSON(http.MethodPut, "/api/receipts/"+saved.ID, map[string]any{"merchant": "Cafe", "total": 0})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns Not Found for an unknown id", func() {
			resp := doJSON(http.MethodPut, "/api/receipts/missing", map[string]any{"merchant": "Cafe", "total": 1})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleDeleteReceipt", func() {
		var saved *receipt.Receipt

		BeforeEach(func() {
			saved = seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
		})

		It("removes the receipt", func() {
			resp := do(http.MethodDelete, "/api/receipts/"+saved.ID, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			stored, err := service.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(BeEmpty())
			Expect(testutil.ToFloat64(m.ReceiptsDeleted)).To(Equal(1.0))
		})

		It("ignores an unknown id", func() {
			resp := do(http.MethodDelete, "/api/receipts/missing", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			stored, err := service.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))
		})
	})

	Describe("flag toggles", func() {
		var saved *receipt.Receipt

		BeforeEach(func() {
			saved = seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
		})

		It("flips the reimbursed flag", func() {
			resp := do(http.MethodPost, "/api/receipts/"+saved.ID+"/reimbursed", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var updated receipt.Receipt
			decode(resp, &updated)
			Expect(updated.IsReimbursed).To(BeTrue())
			Expect(updated.IsFavorite).To(BeFalse())
		})

		It("flips the favorite flag", func() {
			resp := do(http.MethodPost, "/api/receipts/"+saved.ID+"/favorite", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var updated receipt.Receipt
			decode(resp, &updated)
			Expect(updated.IsFavorite).To(BeTrue())
		})

		It("returns Not Found for an unknown id", func() {
			resp := do(http.MethodPost, "/api/receipts/missing/favorite", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleGetDocument", func() {
		When("the receipt has a document", func() {
			var saved *receipt.Receipt

			BeforeEach(func() {
				var err error
				saved, err = service.SaveManual(ctx, receipt.PartialFields{
					Merchant: "Cafe Mocha",
					Total:    ptr(45.50),
					Image:    "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
				}, "")
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns the decoded bytes with their content type", func() {
				resp := do(http.MethodGet, "/api/receipts/"+saved.ID+"/document", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal("%PDF-1.4"))
			})
		})

		When("the receipt has no document", func() {
			var saved *receipt.Receipt

			BeforeEach(func() {
				saved = seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
			})

			It("returns Not Found", func() {
				resp := do(http.MethodGet, "/api/receipts/"+saved.ID+"/document", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleExportReceipt", func() {
		var saved *receipt.Receipt

		BeforeEach(func() {
			saved = seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
		})

		It("returns the printable document as an attachment", func() {
			resp := do(http.MethodGet, "/api/receipts/"+saved.ID+"/export", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("receipt-Cafe-Mocha-2024-03-10.html"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Cafe Mocha"))
		})
	})

	Describe("handleAnalytics", func() {
		BeforeEach(func() {
			seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
			seed("Metro Rail", "2024-03-11", 54.50, "Travel")
		})

		It("returns totals, the category breakdown and insights", func() {
			resp := do(http.MethodGet, "/api/analytics", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body analyticsResponse
			decode(resp, &body)
			Expect(body.Stats.TotalSpend).To(Equal(100.0))
			Expect(body.Stats.Count).To(Equal(2))
			Expect(body.Stats.ByCategory[0].Category).To(Equal(receipt.Travel))
			Expect(body.Insights).To(ContainElement("Most of your spending goes to Travel."))
			Expect(body.Insights).To(ContainElement("You've processed 2 transactions this billing period."))
		})
	})

	Describe("settings", func() {
		It("returns the defaults before anything is saved", func() {
			resp := do(http.MethodGet, "/api/settings", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var settings receipt.Settings
			decode(resp, &settings)
			Expect(settings).To(Equal(receipt.DefaultSettings()))
		})

		It("looks up the symbol of a currency code", func() {
			resp := doJSON(http.MethodPut, "/api/settings", map[string]any{"currencyCode": "usd"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var settings receipt.Settings
			decode(resp, &settings)
			Expect(settings.CurrencyCode).To(Equal("USD"))
			Expect(settings.CurrencySymbol).To(Equal("$"))
			Expect(settings.Theme).To(Equal(receipt.ThemeSystem))

			stored, err := service.Settings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(settings))
		})

		It("rejects an unknown currency code", func() {
			resp := doJSON(http.MethodPut, "/api/settings", map[string]any{"currencyCode": "XYZ"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown theme", func() {
			resp := doJSON(http.MethodPut, "/api/settings", map[string]any{"theme": "neon"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("lists the supported currencies", func() {
			resp := do(http.MethodGet, "/api/currencies", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var currencies []receipt.Currency
			decode(resp, &currencies)
			Expect(currencies).To(ContainElement(receipt.Currency{Code: "EUR", Symbol: "€", Name: "Euro"}))
		})
	})

	Describe("handleExport", func() {
		BeforeEach(func() {
			seed("Cafe Mocha", "2024-03-10", 45.50, "Food")
		})

		It("defaults to a JSON backup", func() {
			resp := do(http.MethodGet, "/api/export", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("receiptify-backup-2024-03-12.json"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			backup, err := export.ParseBackup(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(backup.Receipts).To(HaveLen(1))
			Expect(backup.App).To(Equal(export.AppName))
			Expect(backup.ExportedAt).To(Equal("2024-03-12T08:30:00Z"))
		})

		It("writes a YAML backup", func() {
			resp := do(http.MethodGet, "/api/export?format=yaml", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("merchant: Cafe Mocha"))
		})

		It("writes a spreadsheet", func() {
			resp := do(http.MethodGet, "/api/export?format=xlsx", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("spreadsheetml"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(HavePrefix("PK"))
		})

		It("writes the HTML report", func() {
			resp := do(http.MethodGet, "/api/export?format=html", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Cafe Mocha"))
		})

		It("rejects an unknown format", func() {
			resp := do(http.MethodGet, "/api/export?format=csv", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleImport", func() {
		var backup *export.Backup

		BeforeEach(func() {
			backup = export.NewBackup([]*receipt.Receipt{
				{ID: "a", Merchant: "Old Cafe", Date: "2023-12-01", Total: 8, Currency: "$", Category: receipt.Food, Taxes: []receipt.TaxDetail{}, Items: []receipt.ReceiptItem{}},
				{Merchant: "No Id Shop", Date: "2023-12-02", Total: 4, Currency: "$", Category: "Gadgets"},
			}, receipt.Settings{CurrencySymbol: "$", CurrencyCode: "USD", Theme: receipt.ThemeDark}, now)
		})

		It("imports the receipts", func() {
			data, err := backup.JSON()
			Expect(err).NotTo(HaveOccurred())

			resp := do(http.MethodPost, "/api/import", bytes.NewReader(data), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body importResponse
			decode(resp, &body)
			Expect(body.Imported).To(Equal(2))

			stored, err := service.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(2))
			Expect(stored[1].ID).To(Equal("id-1"))
			Expect(stored[1].Category).To(Equal(receipt.Others))

			settings, err := service.Settings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(Equal(receipt.DefaultSettings()))
		})

		It("restores settings when asked", func() {
			data, err := backup.YAML()
			Expect(err).NotTo(HaveOccurred())

			resp := do(http.MethodPost, "/api/import?settings=true", bytes.NewReader(data), "application/yaml")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			settings, err := service.Settings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings.Theme).To(Equal(receipt.ThemeDark))
		})

		It("imports receipts from a backup without settings when settings are requested", func() {
			body := `{"receipts": [{"id": "x", "merchant": "Old Cafe", "date": "2023-12-01", "total": 8, "currency": "$", "category": "Food"}]}`

			resp := do(http.MethodPost, "/api/import?settings=true", strings.NewReader(body), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var imported importResponse
			decode(resp, &imported)
			Expect(imported.Imported).To(Equal(1))

			settings, err := service.Settings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(Equal(receipt.DefaultSettings()))
		})

		It("rejects a body that is not a backup", func() {
			resp := do(http.MethodPost, "/api/import", strings.NewReader("{not json"), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("metrics", func() {
		It("exposes the counters", func() {
			seed("Cafe Mocha", "2024-03-10", 45.50, "Food")

			resp := do(http.MethodGet, "/metrics", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(`receiptify_receipts_saved_total{source="manual"} 1`))
		})
	})

	Describe("routing", func() {
		It("answers preflight requests with CORS headers", func() {
			resp := do(http.MethodOptions, "/api/receipts", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})

		It("returns Method Not Allowed for the wrong method", func() {
			resp := do(http.MethodPost, "/api/analytics", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("authenticate", func() {
		var req *http.Request

		BeforeEach(func() {
			var err error
			req, err = http.NewRequest(http.MethodGet, "/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
		})

		When("no auth is configured", func() {
			It("should return true", func() {
				Expect(server.authenticate(req)).To(BeTrue())
			})
		})

		When("auth is configured", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				build()
			})

			It("accepts valid credentials", func() {
				req.SetBasicAuth("user", "pass")
				Expect(server.authenticate(req)).To(BeTrue())
			})

			It("rejects invalid credentials", func() {
				req.SetBasicAuth("user", "wrong")
				Expect(server.authenticate(req)).To(BeFalse())
			})

			It("rejects a missing header", func() {
				Expect(server.authenticate(req)).To(BeFalse())
			})

			It("returns Unauthorized with a challenge", func() {
				resp := do(http.MethodGet, "/api/receipts", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			})
		})
	})
})

var _ = Describe("writeBody", func() {
	var logs *bytes.Buffer

	BeforeEach(func() {
		logs = &bytes.Buffer{}
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(logs, nil)))
		DeferCleanup(slog.SetDefault, previous)
	})

	It("logs a failed write", func() {
		writeBody(&brokenWriter{header: http.Header{}}, []byte("%PDF-1.4"))
		Expect(logs.String()).To(ContainSubstring("Error writing response"))
		Expect(logs.String()).To(ContainSubstring("connection reset"))
	})

	It("stays quiet on success", func() {
		rec := httptest.NewRecorder()
		writeBody(rec, []byte("%PDF-1.4"))
		Expect(rec.Body.String()).To(Equal("%PDF-1.4"))
		Expect(logs.String()).To(BeEmpty())
	})
})

var _ = Describe("contentTypeFor", func() {
	It("keeps a declared content type", func() {
		Expect(contentTypeFor("image/PNG", "photo.jpg")).To(Equal("image/png"))
	})

	It("falls back to the extension", func() {
		Expect(contentTypeFor("", "photo.WEBP")).To(Equal("image/webp"))
		Expect(contentTypeFor("application/octet-stream", "scan.pdf")).To(Equal("application/pdf"))
		Expect(contentTypeFor("", "notes.txt")).To(Equal("application/octet-stream"))
	})
})
