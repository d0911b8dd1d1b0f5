package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportController struct {
	reports *service.ReportService
}

func NewReportController(reports *service.ReportService) *ReportController {
	return &ReportController{reports: reports}
}

// dateRange reads from/to (YYYY-MM-DD); the default is the last 30 days.
func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -29)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(service.DateLayout, v)
		if err != nil {
			return from, to, apperr.Validation("from must be YYYY-MM-DD").WithCode("INVALID_RANGE")
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(service.DateLayout, v)
		if err != nil {
			return from, to, apperr.Validation("to must be YYYY-MM-DD").WithCode("INVALID_RANGE")
		}
		to = t
	}
	return from, to, nil
}

func (ctl *ReportController) sales(c *gin.Context) (*service.SalesReport, bool) {
	from, to, err := dateRange(c)
	if err != nil {
		apperr.Respond(c, err)
		return nil, false
	}
	report, err := ctl.reports.Sales(c.Request.Context(), access.CurrentCafe(c).ID, from, to)
	if err != nil {
		apperr.Respond(c, err)
		return nil, false
	}
	return report, true
}

func (ctl *ReportController) Sales(c *gin.Context) {
	report, ok := ctl.sales(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

func (ctl *ReportController) Export(c *gin.Context) {
	report, ok := ctl.sales(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := service.WriteSalesXLSX(&buf, report); err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	name := fmt.Sprintf("sales-%s-%s.xlsx", report.From, report.To)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
