package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// TestRecordSignature 测试签署结果计数
func TestRecordSignature(t *testing.T) {
	before := testutil.ToFloat64(signaturesTotal.WithLabelValues("not_eligible"))
	RecordSignature("not_eligible")
	RecordSignature("not_eligible")
	assert.Equal(t, before+2, testutil.ToFloat64(signaturesTotal.WithLabelValues("not_eligible")))
}

// TestRecordTransition 测试状态流转计数
func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(transitionsTotal.WithLabelValues("4", "5"))
	RecordTransition(4, 5)
	assert.Equal(t, before+1, testutil.ToFloat64(transitionsTotal.WithLabelValues("4", "5")))
}

// TestCollectOnce 测试状态分布收集
func TestCollectOnce(t *testing.T) {
	c := NewCollector(nil, func(ctx context.Context) (map[int]int64, error) {
		return map[int]int64{1: 3, 5: 7}, nil
	}, time.Hour)
	c.CollectOnce()
	assert.Equal(t, float64(3), testutil.ToFloat64(documentsByStatus.WithLabelValues("1")))
	assert.Equal(t, float64(7), testutil.ToFloat64(documentsByStatus.WithLabelValues("5")))

	// 统计失败时保留上一次的值
	failing := NewCollector(nil, func(ctx context.Context) (map[int]int64, error) {
		return nil, errors.New("db down")
	}, time.Hour)
	failing.CollectOnce()
	assert.Equal(t, float64(7), testutil.ToFloat64(documentsByStatus.WithLabelValues("5")))

	c.Start()
	c.Stop()
}

// TestHandler 测试指标暴露端点
func TestHandler(t *testing.T) {
	RecordSeal(120*time.Millisecond, nil)
	RecordSignBatch(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "seal_duration_seconds"))
	assert.True(t, strings.Contains(body, "sign_batch_size"))
}
