package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host: "ch", Port: 9000, Database: "cot", User: "reader", Password: "p@ss",
		DialTimeout: 5 * time.Second, MaxExecTime: 90 * time.Second,
	})
	assert.Equal(t, "clickhouse://reader:p%40ss@ch:9000/cot?dial_timeout=5s&max_execution_time=90", dsn)

	dsn = BuildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "default", User: "default", UseHTTP: true})
	assert.Equal(t, "http://default:@ch:8123/default", dsn)
}
