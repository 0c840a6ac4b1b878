package contract

// Dispatcher: 分发策略。对每个到达的代码块，决定其开启新文件（返回非 nil）
// 还是延续当前文件（返回 nil）。
// 约束：
//  1. 有状态对象，单次遍历内按到达顺序调用；
//  2. 不要求首次调用返回非 nil（由写出端统一校验）；
//  3. 除自身游标外无副作用。
type Dispatcher interface {
	Dispatch(b CodeBlock) *Path
}

// SourceAware: 可选扩展。流水线在每个源的首个代码块之前调用 BeginSource。
type SourceAware interface {
	BeginSource(src Source)
}

// DispatchFunc 将普通函数适配为 Dispatcher。
type DispatchFunc func(b CodeBlock) *Path

func (f DispatchFunc) Dispatch(b CodeBlock) *Path { return f(b) }
