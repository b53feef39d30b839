package oss

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/qrcode_go_server/config"
)

// Client 二维码文件的 OSS 镜像
type Client struct {
	bucket     *oss.Bucket
	bucketName string
	endpoint   string
	cdnDomain  string
	prefix     string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		bucket:     bucket,
		bucketName: cfg.BucketName,
		endpoint:   client.Config.Endpoint,
		cdnDomain:  cfg.CDNDomain,
		prefix:     cfg.Prefix,
	}, nil
}

// Put 上传文件，返回访问地址
func (c *Client) Put(key string, data []byte, contentType string) (string, error) {
	objectKey := ObjectKey(c.prefix, key)
	if err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType(contentType)); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	return c.URL(key), nil
}

// Delete 删除文件
func (c *Client) Delete(key string) error {
	objectKey := ObjectKey(c.prefix, key)
	if err := c.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectKey, err)
	}
	return nil
}

// URL 获取文件访问 URL
func (c *Client) URL(key string) string {
	return PublicURL(c.cdnDomain, c.bucketName, c.endpoint, ObjectKey(c.prefix, key))
}

// ObjectKey 拼接前缀与相对路径
func ObjectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// PublicURL 有 CDN 域名时优先使用 CDN
func PublicURL(cdnDomain, bucketName, endpoint, objectKey string) string {
	if cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cdnDomain, objectKey)
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", bucketName, endpoint, objectKey)
}
