package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/thitsarsoft/billing_backend/config"
	"bitbucket.org/thitsarsoft/billing_backend/models"
	"bitbucket.org/thitsarsoft/billing_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// documentTypeFromParam maps the URL segment to a counter key and its
// default prefix.
func documentTypeFromParam(param string) (models.DocumentType, string, bool) {
	switch param {
	case "quotation":
		return models.DocumentTypeQuotation, models.PrefixQuotation, true
	case "invoice":
		return models.DocumentTypeSalesInvoice, models.PrefixSalesInvoice, true
	case "bill":
		return models.DocumentTypePurchaseInvoice, models.PrefixPurchaseInvoice, true
	case "receipt":
		return models.DocumentTypeReceipt, models.PrefixReceipt, true
	case "payment":
		return models.DocumentTypePayment, models.PrefixPayment, true
	}
	return "", "", false
}

// statusForError maps engine error kinds onto HTTP statuses.
func statusForError(err error) int {
	switch utils.KindOf(err) {
	case utils.ErrorKindStoreUnavailable:
		return http.StatusServiceUnavailable
	case utils.ErrorKindExhaustedRetries:
		return http.StatusConflict
	case utils.ErrorKindAdvanceOverdraw:
		return http.StatusConflict
	case utils.ErrorKindInvalidAmount,
		utils.ErrorKindInvalidSequence,
		utils.ErrorKindIncompleteSettlementData:
		return http.StatusBadRequest
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error(), "kind": utils.KindOf(err)})
}

func parseId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func peekNumberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		documentType, prefix, ok := documentTypeFromParam(c.Param("type"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown document type"})
			return
		}
		number, err := models.PeekNextNumber(c.Request.Context(), documentType, prefix)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document_type": documentType, "next_number": number})
	}
}

func createQuotationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQuotation
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		quotation, warnings, err := models.CreateQuotation(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"quotation": quotation, "tax_warnings": warnings})
	}
}

func createSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSalesInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		invoice, warnings, err := models.CreateSalesInvoice(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"invoice": invoice, "tax_warnings": warnings})
	}
}

func createPurchaseInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchaseInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		invoice, warnings, err := models.CreatePurchaseInvoice(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"bill": invoice, "tax_warnings": warnings})
	}
}

func settleSalesInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		var input models.NewSettlement
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.InvoiceId = id
		if input.IdempotencyKey == "" {
			input.IdempotencyKey = c.GetHeader("x-idempotency-key")
		}
		result, err := models.SettleSalesInvoice(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func settlePurchaseInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		var input models.NewSettlement
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.InvoiceId = id
		if input.IdempotencyKey == "" {
			input.IdempotencyKey = c.GetHeader("x-idempotency-key")
		}
		result, err := models.SettlePurchaseInvoice(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewReceipt
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		receipt, settlement, err := models.CreateReceipt(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"receipt": receipt, "settlement": settlement})
	}
}

func createPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payment, settlement, err := models.CreatePayment(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"payment": payment, "settlement": settlement})
	}
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/numbering/:type/peek", peekNumberHandler())

	api.POST("/quotations", createQuotationHandler())
	api.GET("/quotations", func(c *gin.Context) {
		var status *models.QuotationStatus
		if v := c.Query("status"); v != "" {
			s := models.QuotationStatus(v)
			status = &s
		}
		results, err := models.GetQuotations(c.Request.Context(), nil, status)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	api.PUT("/quotations/:id/status", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		var body struct {
			Status models.QuotationStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := models.UpdateQuotationStatus(c.Request.Context(), id, body.Status)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
	api.GET("/quotations/:id", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		result, err := models.GetQuotation(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	api.POST("/sales-invoices", createSalesInvoiceHandler())
	api.GET("/sales-invoices", func(c *gin.Context) {
		var status *models.SalesInvoiceStatus
		if v := c.Query("status"); v != "" {
			s := models.SalesInvoiceStatus(v)
			status = &s
		}
		var number *string
		if v := c.Query("number"); v != "" {
			number = &v
		}
		results, err := models.GetSalesInvoices(c.Request.Context(), nil, number, status)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	api.GET("/sales-invoices/:id", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		result, err := models.GetSalesInvoice(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
	api.POST("/sales-invoices/:id/void", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		result, err := models.VoidSalesInvoice(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
	api.POST("/sales-invoices/:id/settle", settleSalesInvoiceHandler())

	api.POST("/purchase-invoices", createPurchaseInvoiceHandler())
	api.GET("/purchase-invoices", func(c *gin.Context) {
		var status *models.PurchaseInvoiceStatus
		if v := c.Query("status"); v != "" {
			s := models.PurchaseInvoiceStatus(v)
			status = &s
		}
		results, err := models.GetPurchaseInvoices(c.Request.Context(), nil, nil, status)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	api.GET("/purchase-invoices/:id", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		result, err := models.GetPurchaseInvoice(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
	api.POST("/purchase-invoices/:id/void", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		result, err := models.VoidPurchaseInvoice(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
	api.POST("/purchase-invoices/:id/settle", settlePurchaseInvoiceHandler())

	api.POST("/receipts", createReceiptHandler())
	api.GET("/receipts", func(c *gin.Context) {
		var paymentType *models.PaymentType
		if v := c.Query("payment_type"); v != "" {
			p := models.PaymentType(v)
			paymentType = &p
		}
		results, err := models.GetReceipts(c.Request.Context(), nil, paymentType)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	api.POST("/payments", createPaymentHandler())
	api.GET("/payments", func(c *gin.Context) {
		var paymentType *models.PaymentType
		if v := c.Query("payment_type"); v != "" {
			p := models.PaymentType(v)
			paymentType = &p
		}
		results, err := models.GetPayments(c.Request.Context(), nil, paymentType)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	api.GET("/clients/:id/advances", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		results, err := models.GetOpenAdvanceReceipts(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	api.GET("/vendors/:id/advances", func(c *gin.Context) {
		id, ok := parseId(c)
		if !ok {
			return
		}
		results, err := models.GetOpenAdvancePayments(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})

	api.GET("/tax-rates", func(c *gin.Context) {
		var kind *models.TaxKind
		if v := c.Query("kind"); v != "" {
			k := models.TaxKind(v)
			kind = &k
		}
		results, err := models.GetTaxRates(c.Request.Context(), kind)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	api.POST("/tax-rates", func(c *gin.Context) {
		var input models.NewTaxRate
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := models.CreateTaxRate(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-business-id", "x-idempotency-key")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Tenant scoping: every request carries its business id.
	r.Use(func(c *gin.Context) {
		businessId := strings.TrimSpace(c.GetHeader("x-business-id"))
		if businessId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x-business-id header is required"})
			return
		}
		c.Request = c.Request.WithContext(utils.SetBusinessIdInContext(c.Request.Context(), businessId))
		c.Next()
	})
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateModels(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("migration failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Counter upserts rely on READ COMMITTED visibility.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that accumulated errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
