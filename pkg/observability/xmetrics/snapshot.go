package xmetrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Point 一个指标数据点的扁平视图，用于调试接口输出。
type Point struct {
	Name  string            `json:"name"`
	Attrs map[string]string `json:"attrs,omitempty"`
	// Value 计数器的累计值
	Value float64 `json:"value,omitempty"`
	// Count、Sum 直方图的样本数与总和
	Count uint64  `json:"count,omitempty"`
	Sum   float64 `json:"sum,omitempty"`
}

// Collect 从 reader 拉取当前指标，按名称与属性排序返回。
// 只展开计数器与直方图，其他聚合类型忽略。
func Collect(ctx context.Context, reader sdkmetric.Reader) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("xmetrics: collect: %w", err)
	}

	var points []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Attrs: attrMap(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Attrs: attrMap(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Attrs: attrMap(dp.Attributes), Count: dp.Count, Sum: dp.Sum})
				}
			}
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return fmt.Sprint(points[i].Attrs) < fmt.Sprint(points[j].Attrs)
	})
	return points, nil
}

func attrMap(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	out := make(map[string]string, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}
