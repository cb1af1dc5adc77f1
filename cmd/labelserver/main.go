// Package main runs the labelproc HTTP server: upload a label PDF and an
// order spreadsheet, download the re-composited document.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/lightmkt/labelproc/ident"
	"github.com/lightmkt/labelproc/locator"
	"github.com/lightmkt/labelproc/pipeline"
)

func main() {
	// Optional .env; environment wins when both are set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	r := gin.Default()
	r.MaxMultipartMemory = 32 << 20

	r.GET("/healthz", healthz)
	r.POST("/process", process)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// process accepts multipart fields "pdf" and "sheet", with optional form
// values "scheme" (tracking, order) and "policy" (emit-all,
// suppress-unmatched). The response body is the output PDF; the run report
// travels in the X-Report header as JSON.
func process(c *gin.Context) {
	pdfFile, err := c.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing pdf upload"})
		return
	}
	sheetFile, err := c.FormFile("sheet")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing sheet upload"})
		return
	}

	cfg := pipeline.DefaultConfig()
	switch c.DefaultPostForm("scheme", "tracking") {
	case "tracking":
		cfg.Scheme = ident.SchemeTracking
	case "order":
		cfg.Scheme = ident.SchemeOrder
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheme"})
		return
	}
	switch c.DefaultPostForm("policy", "emit-all") {
	case "emit-all":
		cfg.Policy = locator.PolicyEmitAll
	case "suppress-unmatched":
		cfg.Policy = locator.PolicySuppressUnmatched
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid policy"})
		return
	}

	dir, err := os.MkdirTemp("", "labelproc-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "labels.pdf")
	sheetPath := filepath.Join(dir, "orders.xlsx")
	if err := c.SaveUploadedFile(pdfFile, pdfPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := c.SaveUploadedFile(sheetFile, sheetPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outPath := filepath.Join(dir, "labels_out.pdf")
	out, err := os.Create(outPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	p := pipeline.New(cfg)
	report, err := p.Run(c.Request.Context(), pdfPath, sheetPath, out)
	out.Close()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	encoded, err := json.Marshal(report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Report", string(encoded))
	c.FileAttachment(outPath, fmt.Sprintf("etiquetas_%dx.pdf", report.Total))
}
