package config

import (
	"errors"
	"fmt"
	"strings"

	"mdtangle/internal/pipeline"
	"mdtangle/pkg/contract"
	"mdtangle/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging level %q", cfg.Logging.Level)
	}
	d := Defaults()
	if name := effName(cfg.Components.Walker, d.Components.Walker); registry.Walker[name] == nil {
		return fmt.Errorf("config: walker %q not registered", name)
	}
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered (have %v)", name, registry.Names(registry.Reader))
	}
	if name := effName(cfg.Components.Dispatcher, d.Components.Dispatcher); registry.Dispatcher[name] == nil {
		return fmt.Errorf("config: dispatcher %q not registered (have %v)", name, registry.Names(registry.Dispatcher))
	}
	if name := effName(cfg.Components.Storage, d.Components.Storage); registry.Storage[name] == nil {
		return fmt.Errorf("config: storage %q not registered (have %v)", name, registry.Names(registry.Storage))
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults()
	wn := effName(cfg.Components.Walker, d.Components.Walker)
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	dn := effName(cfg.Components.Dispatcher, d.Components.Dispatcher)
	sn := effName(cfg.Components.Storage, d.Components.Storage)

	// 构造实例
	w, err := registry.Walker[wn](cfg.Options.Walker)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("walker %s: %w", wn, err)
	}
	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader %s: %w", rn, err)
	}
	disp, err := registry.Dispatcher[dn](cfg.Options.Dispatcher)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("dispatcher %s: %w", dn, err)
	}
	sraw := cfg.Options.Storage
	if len(sraw) == 0 {
		sraw = defaultStorageOptions[sn]
	}
	st, err := registry.Storage[sn](sraw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("storage %s: %w", sn, err)
	}

	comp := pipeline.Components{
		Walker:     w,
		Reader:     r,
		Dispatcher: disp,
		Storage:    st,
	}
	set := pipeline.Settings{
		Inputs:         cloneStrings(cfg.Inputs),
		Default:        contract.Path(strings.TrimSpace(cfg.Default)),
		DispatcherName: dn,
		StorageName:    sn,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
