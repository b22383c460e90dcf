package model

import (
	"time"
)

// 搜索历史状态常量。
const (
	StatusPending   = "pending"   // 等待抓取
	StatusCompleted = "completed" // 抓取成功
	StatusFailed    = "failed"    // 抓取失败
)

// ErrorMessageLimit 错误信息入库前的最大长度。
const ErrorMessageLimit = 1000

// Product 表示一次搜索发现的商品信息。
//
// ProductID 是商品在源平台的唯一标识（如 mock_123456_0），用于 Upsert 去重：
// 同一 ProductID 再次抓取时更新已有记录而不是新建。
type Product struct {
	ID        uint      `gorm:"primaryKey"` // 内部 ID
	CreatedAt time.Time // 首次入库时间
	UpdatedAt time.Time // 更新时间

	ProductID   string   `gorm:"type:varchar(191);uniqueIndex;not null"` // 源平台商品 ID (唯一索引)
	Name        string   `gorm:"type:varchar(500);not null"`             // 商品名称
	Brand       *string  `gorm:"type:varchar(255)"`                      // 品牌（可空）
	Price       *float64 `gorm:"type:decimal(10,2)"`                     // 数值价格（可空，2 位小数）
	Currency    string   `gorm:"type:varchar(3);default:USD"`            // 货币代码
	PriceText   *string  `gorm:"type:varchar(100)"`                      // 原始价格文本
	Weight      *string  `gorm:"type:varchar(100)"`                      // 重量/规格文本（可空）
	Store       *string  `gorm:"type:varchar(255)"`                      // 商店名称（可空）
	Rating      *float64 // 评分（可空）
	ReviewCount uint     `gorm:"default:0"` // 评价数量

	URL      string  `gorm:"type:varchar(1000);not null"` // 商品详情页链接
	ImageURL *string `gorm:"type:varchar(1000)"`          // 主图链接（可空）

	SearchQuery     string    `gorm:"type:varchar(255);index;not null"` // 发现该商品的搜索关键词
	SearchTimestamp time.Time `gorm:"autoCreateTime;index"`             // 搜索时间
}

// ToResult 将商品转换为 API 响应使用的 DTO。
func (p *Product) ToResult() ProductResult {
	return ProductResult{
		ProductID:   p.ProductID,
		Name:        p.Name,
		Brand:       p.Brand,
		Price:       p.Price,
		Currency:    p.Currency,
		PriceText:   p.PriceText,
		Weight:      p.Weight,
		Store:       p.Store,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		URL:         p.URL,
		ImageURL:    p.ImageURL,
		SearchQuery: p.SearchQuery,
		SearchedAt:  p.SearchTimestamp,
	}
}

// ProductResult 是在抓取、入库与序列化之间流动的商品载荷。
//
// 抓取边界校验一次之后各层直接使用，不再重复做字段检查。
type ProductResult struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Brand       *string   `json:"brand"`
	Price       *float64  `json:"price"`
	Currency    string    `json:"currency"`
	PriceText   *string   `json:"price_text"`
	Weight      *string   `json:"weight"`
	Store       *string   `json:"store"`
	Rating      *float64  `json:"rating"`
	ReviewCount uint      `json:"review_count"`
	URL         string    `json:"url"`
	ImageURL    *string   `json:"image_url"`
	SearchQuery string    `json:"search_query"`
	SearchedAt  time.Time `json:"searched_at"`
}

// SearchHistory 记录一次搜索尝试的生命周期。
//
// 状态机: pending -> completed 或 pending -> failed，到达终态时写入 CompletedAt。
type SearchHistory struct {
	ID        uint      `gorm:"primaryKey"` // 历史记录 ID
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	Query        string     `gorm:"type:varchar(255);index;not null"` // 搜索关键词
	Status       string     `gorm:"type:varchar(20);default:pending"` // pending / completed / failed
	ResultsCount uint       `gorm:"default:0"`                        // 结果数量
	ErrorMessage *string    `gorm:"type:text"`                        // 失败原因（截断至 1000 字符）
	ResponseTime *float64   // 耗时（秒）
	CompletedAt  *time.Time // 终态时间
}

// Finished 返回该记录是否已处于终态。
func (h *SearchHistory) Finished() bool {
	return h.Status == StatusCompleted || h.Status == StatusFailed
}

// CachedSearchResult 是某个关键词结果集的持久化快照。
//
// 与 Redis 进程缓存相互独立：读取时只返回 ExpiresAt 严格在未来的行，
// 同一关键词（忽略大小写）有多条未过期记录时取 CreatedAt 最新的一条。
// 过期行不做删除，仅在读取时忽略。
type CachedSearchResult struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Query     string    `gorm:"type:varchar(255);index;not null"` // 搜索关键词
	Results   string    `gorm:"type:text;not null"`               // JSON 序列化的 []ProductResult
	ExpiresAt time.Time `gorm:"index;not null"`                   // 过期时间
}

// TruncateError 将错误信息截断到入库允许的最大长度。
func TruncateError(msg string) string {
	if len(msg) > ErrorMessageLimit {
		return msg[:ErrorMessageLimit]
	}
	return msg
}
