package contract

// Path: 输出存储内的相对路径（原样接受，不做转义；越界校验由 Storage 负责）。
type Path string

// Attr: 代码块属性对（name=value）。名称不要求唯一。
type Attr struct {
	Name  string
	Value string
}

// CodeBlock: 从源文档中抽取出的单个围栏代码块。
// 约束：
//  1. 产生后不可变；
//  2. Attrs 保持源中出现顺序；
//  3. Content 为原样内容，不做换行归一。
type CodeBlock struct {
	Lang    string
	Content string
	Attrs   []Attr
}

// NewCodeBlock 构造代码块；attrs 会被复制，调用方后续修改不影响结果。
func NewCodeBlock(lang, content string, attrs ...Attr) CodeBlock {
	var cp []Attr
	if len(attrs) > 0 {
		cp = make([]Attr, len(attrs))
		copy(cp, attrs)
	}
	return CodeBlock{Lang: lang, Content: content, Attrs: cp}
}

// Lookup 按属性顺序查找第一个名称匹配的属性（首个命中即返回）。
func (b CodeBlock) Lookup(name string) (string, bool) {
	for _, a := range b.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Event: 代码块与可选目标的配对，仅在序列上下文中有意义。
//   - Target 非 nil：自本块起追加写入 *Target；
//   - Target 为 nil：沿用上一个事件正在写入的文件。
//
// 事件序列必须从首元素起逐个消费，不可跳过或从中途重放；
// 写出端要求首个事件携带 Target。
type Event struct {
	Target *Path
	Block  CodeBlock
}

// Some 构造携带目标的事件。
func Some(p Path, b CodeBlock) Event {
	return Event{Target: &p, Block: b}
}

// None 构造沿用上一目标的事件。
func None(b CodeBlock) Event {
	return Event{Block: b}
}

// HasTarget 报告事件是否携带目标。
func (e Event) HasTarget() bool { return e.Target != nil }

// TargetOr 返回目标；缺失时返回 def。
func (e Event) TargetOr(def Path) Path {
	if e.Target == nil {
		return def
	}
	return *e.Target
}
