package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
)

// ContentHash 文章去重哈希: SHA-256(url + "|" + title) 的小写十六进制
func ContentHash(url, title string) string {
	sum := sha256.Sum256([]byte(url + "|" + title))
	return hex.EncodeToString(sum[:])
}

// mediaExtensions 不作为文章链接的资源后缀
var mediaExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".bmp": true, ".tiff": true,
	".mp4": true, ".mp3": true, ".wav": true, ".avi": true, ".mov": true,
	".pdf": true,
}

// IsMediaURL 链接是否指向图片、音视频或PDF
func IsMediaURL(rawURL string) bool {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return mediaExtensions[strings.ToLower(path.Ext(p))]
}

// Deduplicator 按内容哈希过滤已存储的文章
type Deduplicator struct {
	store models.ArticleStore
}

// NewDeduplicator 创建去重器
func NewDeduplicator(store models.ArticleStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// Accept 哈希不存在时保存文章
// 返回true表示这是一篇新文章且已插入
func (d *Deduplicator) Accept(ctx context.Context, targetID int64, article models.ArticleCandidate) (bool, error) {
	hash := ContentHash(article.URL, article.Title)

	exists, err := d.store.ExistsByHash(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("查询文章哈希失败: %w", err)
	}
	if exists {
		return false, nil
	}

	// 并发写入同一哈希时由存储层的唯一约束兜底, 此时返回false
	inserted, err := d.store.SaveArticle(ctx, targetID, article, hash)
	if err != nil {
		return false, fmt.Errorf("保存文章失败: %w", err)
	}
	return inserted, nil
}
