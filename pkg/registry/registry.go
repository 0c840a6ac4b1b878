package registry

import (
	"bytes"
	"encoding/json"
	"sort"

	"mdtangle/pkg/contract"
	"mdtangle/plugins/dispatcher/byattr"
	"mdtangle/plugins/dispatcher/monofile"
	dsrc "mdtangle/plugins/dispatcher/source"
	rfence "mdtangle/plugins/reader/fence"
	rmd "mdtangle/plugins/reader/markdown"
	sfs "mdtangle/plugins/storage/filesystem"
	smem "mdtangle/plugins/storage/memory"
	ss3 "mdtangle/plugins/storage/s3"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewDispatcher 工厂签名：接收原样 JSON Options。
type NewDispatcher func(raw json.RawMessage) (contract.Dispatcher, error)

// NewStorage 工厂签名：接收原样 JSON Options。
type NewStorage func(raw json.RawMessage) (contract.Storage, error)

// NewWalker 工厂签名：接收原样 JSON Options。
type NewWalker func(raw json.RawMessage) (contract.Walker, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// markdown: CommonMark 围栏代码块
	"markdown": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rmd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rmd.New(&opts), nil
	},
	// fence: 逐行围栏扫描（任意文本）
	"fence": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfence.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfence.New(&opts), nil
	},
}

// Dispatcher 工厂注册表。
var Dispatcher = map[string]NewDispatcher{
	// mono: 全部代码块写入单一文件
	"mono": func(raw json.RawMessage) (contract.Dispatcher, error) {
		var opts monofile.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return monofile.New(&opts)
	},
	// attr: 按代码块属性（默认 file）分发
	"attr": func(raw json.RawMessage) (contract.Dispatcher, error) {
		var opts byattr.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return byattr.New(&opts), nil
	},
	// source: 按源文件相对路径分发
	"source": func(raw json.RawMessage) (contract.Dispatcher, error) {
		var opts dsrc.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return dsrc.New(&opts), nil
	},
}

// Storage 工厂注册表。
var Storage = map[string]NewStorage{
	// fs: 输出根目录下的文件系统存储
	"fs": func(raw json.RawMessage) (contract.Storage, error) {
		var opts sfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sfs.New(&opts)
	},
	// memory: 内存存储（演练/测试）
	"memory": func(raw json.RawMessage) (contract.Storage, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return smem.New(), nil
	},
	// s3: S3 兼容对象存储
	"s3": func(raw json.RawMessage) (contract.Storage, error) {
		var opts ss3.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ss3.New(&opts)
	},
}

// Walker 工厂注册表。
var Walker = map[string]NewWalker{
	// fs: 文件系统/STDIN 遍历
	"fs": func(raw json.RawMessage) (contract.Walker, error) {
		var opts sfs.WalkOptions
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sfs.NewWalker(&opts), nil
	},
}

// Names 返回注册表中的名字（字典序），用于帮助信息与校验提示。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
