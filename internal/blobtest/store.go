/*
 * Copyright (c) 2025 ivfzhou
 * blob-uploader is licensed under Mulan PSL v2.
 * You can use this software according to the terms and conditions of the Mulan PSL v2.
 * You may obtain a copy of Mulan PSL v2 at:
 *          http://license.coscl.org.cn/MulanPSL2
 * THIS SOFTWARE IS PROVIDED ON AN "AS IS" BASIS, WITHOUT WARRANTIES OF ANY KIND,
 * EITHER EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO NON-INFRINGEMENT,
 * MERCHANTABILITY OR FIT FOR A PARTICULAR PURPOSE.
 * See the Mulan PSL v2 for more details.
 */

// Package blobtest 内存中的 blob 存储服务，实现分片上传协议，供测试使用。
package blobtest

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	iu "gitee.com/ivfzhou/io-util"
	"github.com/bytedance/sonic"
	"github.com/zeebo/blake3"
)

// Token 测试用令牌，storeId 为 teststore。
const Token = "vercel_blob_rw_teststore_secret"

// Part 合并请求中的一项。
type Part struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// Object 合并后的对象。
type Object struct {
	Pathname    string
	URL         string
	ContentType string
	Data        []byte
	UploadedAt  time.Time
}

// Store 内存存储服务。
type Store struct {
	// URL 服务地址，作为客户端的 API 根地址。
	URL string

	// FailPart 返回非零响应码时，分片上传请求以该响应码失败。attempt 从 0 开始。
	FailPart func(partNumber, attempt int) int
	// PartDelay 分片上传请求处理前的等待时间。
	PartDelay func(partNumber int) time.Duration

	mu          sync.Mutex
	seq         int
	uploads     map[string]*upload
	objects     map[string]*Object
	calls       map[string]int
	manifests   [][]Part
	createHdrs  []http.Header
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

type upload struct {
	pathname    string
	key         string
	contentType string
	parts       map[int][]byte
}

// 内存中的 io.WriterAt。
type memFile struct {
	mu  sync.Mutex
	buf []byte
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Start 启动存储服务，测试结束时关闭。
func Start(tb testing.TB) *Store {
	s := NewStore()
	server := httptest.NewServer(s)
	tb.Cleanup(server.Close)
	s.URL = server.URL
	return s
}

// NewStore 创建存储服务，不监听端口。
func NewStore() *Store {
	return &Store{
		uploads: make(map[string]*upload),
		objects: make(map[string]*Object),
		calls:   make(map[string]int),
	}
}

// ETag 数据的实体标签。相同数据总是得到相同标签。
func ETag(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// Calls 某个操作被请求的次数，包括失败的请求。
func (s *Store) Calls(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[action]
}

// MaxInFlight 同时处理中的分片上传请求数的最大值。
func (s *Store) MaxInFlight() int {
	return int(s.maxInFlight.Load())
}

// Manifests 收到的所有合并清单。
func (s *Store) Manifests() [][]Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Part(nil), s.manifests...)
}

// CreateHeaders 每次创建会话的请求头。
func (s *Store) CreateHeaders() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.createHdrs...)
}

// Object 获取合并后的对象。
func (s *Store) Object(pathname string) (*Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[pathname]
	return obj, ok
}

// OpenUploads 尚未合并或放弃的会话数。
func (s *Store) OpenUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// ServeHTTP 处理请求。
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("authorization"), "Bearer ") {
		writeError(w, http.StatusForbidden, "forbidden", "missing token")
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/mpu":
		s.serveMultipart(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/delete":
		s.serveDelete(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/":
		s.serveHead(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
	}
}

func (s *Store) serveMultipart(w http.ResponseWriter, r *http.Request) {
	action := r.Header.Get("x-mpu-action")
	s.mu.Lock()
	s.calls[action]++
	s.mu.Unlock()

	switch action {
	case "create":
		s.create(w, r)
	case "upload":
		s.uploadPart(w, r)
	case "complete":
		s.complete(w, r)
	case "abort":
		s.abort(w, r)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "unknown action "+action)
	}
}

func (s *Store) create(w http.ResponseWriter, r *http.Request) {
	pathname := r.URL.Query().Get("pathname")
	if len(pathname) <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "pathname is required")
		return
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("upload-%d", s.seq)
	key := pathname
	if r.Header.Get("x-add-random-suffix") == "1" {
		ext := path.Ext(pathname)
		key = fmt.Sprintf("%s-%04d%s", strings.TrimSuffix(pathname, ext), s.seq, ext)
	}
	s.uploads[id] = &upload{
		pathname:    key,
		key:         key,
		contentType: r.Header.Get("x-content-type"),
		parts:       make(map[int][]byte),
	}
	s.createHdrs = append(s.createHdrs, r.Header.Clone())
	s.mu.Unlock()

	writeJSON(w, map[string]string{"uploadId": id, "key": key})
}

func (s *Store) uploadPart(w http.ResponseWriter, r *http.Request) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	partNumber, err := strconv.Atoi(r.Header.Get("x-mpu-part-number"))
	if err != nil || partNumber < 1 || partNumber > 10000 {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid part number")
		return
	}
	if s.PartDelay != nil {
		time.Sleep(s.PartDelay(partNumber))
	}
	if s.FailPart != nil {
		attempt, _ := strconv.Atoi(r.Header.Get("x-api-blob-request-attempt"))
		if status := s.FailPart(partNumber, attempt); status != 0 {
			_, _ = io.Copy(io.Discard, r.Body)
			writeError(w, status, "injected", fmt.Sprintf("part %d attempt %d", partNumber, attempt))
			return
		}
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	u, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown upload")
		return
	}
	s.mu.Lock()
	u.parts[partNumber] = data
	s.mu.Unlock()

	writeJSON(w, map[string]any{"etag": ETag(data), "partNumber": partNumber})
}

func (s *Store) complete(w http.ResponseWriter, r *http.Request) {
	var manifest []Part
	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = sonic.Unmarshal(body, &manifest)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid manifest")
		return
	}

	u, ok := s.lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown upload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests = append(s.manifests, manifest)

	// 清单必须从 1 开始连续升序，且标签与已上传的分片一致。
	var offset int64
	file := &memFile{}
	for i, p := range manifest {
		data, exists := u.parts[p.PartNumber]
		if p.PartNumber != i+1 || !exists || ETag(data) != p.ETag {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid manifest entry %d", i))
			return
		}
		n, err := iu.CopyReaderToWriterAt(bytes.NewReader(data), file, offset, false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_server_error", err.Error())
			return
		}
		offset += n
	}

	obj := &Object{
		Pathname:    u.pathname,
		URL:         "https://teststore.public.blob.example/" + u.pathname,
		ContentType: u.contentType,
		Data:        file.bytes(),
		UploadedAt:  time.Now().UTC(),
	}
	s.objects[u.pathname] = obj
	delete(s.uploads, r.Header.Get("x-mpu-upload-id"))

	writeJSON(w, map[string]string{
		"url":                obj.URL,
		"downloadUrl":        obj.URL + "?download=1",
		"pathname":           obj.Pathname,
		"contentType":        obj.ContentType,
		"contentDisposition": fmt.Sprintf("attachment; filename=%q", path.Base(obj.Pathname)),
	})
}

func (s *Store) abort(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookup(r); !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown upload")
		return
	}
	s.mu.Lock()
	delete(s.uploads, r.Header.Get("x-mpu-upload-id"))
	s.mu.Unlock()
	writeJSON(w, map[string]string{})
}

func (s *Store) serveDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls"`
	}
	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = sonic.Unmarshal(body, &req)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid body")
		return
	}

	s.mu.Lock()
	s.calls["delete"]++
	for _, u := range req.URLs {
		for k, obj := range s.objects {
			if obj.URL == u {
				delete(s.objects, k)
			}
		}
	}
	s.mu.Unlock()
	writeJSON(w, map[string]string{})
}

func (s *Store) serveHead(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	s.mu.Lock()
	s.calls["head"]++
	var found *Object
	for _, obj := range s.objects {
		if obj.URL == target {
			found = obj
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeError(w, http.StatusNotFound, "not_found", "The requested blob does not exist")
		return
	}
	writeJSON(w, map[string]any{
		"url":                found.URL,
		"downloadUrl":        found.URL + "?download=1",
		"pathname":           found.Pathname,
		"size":               len(found.Data),
		"contentType":        found.ContentType,
		"contentDisposition": fmt.Sprintf("attachment; filename=%q", path.Base(found.Pathname)),
		"cacheControl":       "public, max-age=2592000",
		"uploadedAt":         found.UploadedAt.Format(time.RFC3339),
	})
}

// 按请求头查找会话，键与会话不符视为不存在。
func (s *Store) lookup(r *http.Request) (*upload, bool) {
	key, err := url.PathUnescape(r.Header.Get("x-mpu-key"))
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[r.Header.Get("x-mpu-upload-id")]
	if !ok || u.key != key {
		return nil, false
	}
	return u, true
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if end := off + int64(len(p)); end > int64(len(f.buf)) {
		f.buf = append(f.buf, make([]byte, end-int64(len(f.buf)))...)
	}
	copy(f.buf[off:], p)
	return len(p), nil
}

func (f *memFile) bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.buf...)
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "application/json")
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var eb errorBody
	eb.Error.Code = code
	eb.Error.Message = message
	body, _ := sonic.Marshal(&eb)
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
