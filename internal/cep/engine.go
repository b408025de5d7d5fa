// Package cep 实现对实时事件流的时序模式检测。
//
// 引擎面向单写者：操作符的窗口状态不加锁，并发调用 Ingest 需要外部
// 串行化（单一派发循环或互斥锁）。衍生事件只发布到总线，不会回流进
// Ingest，因此不存在递归规则链。
package cep

import (
	"time"

	"vigil/internal/event"
)

// Operator 针对单条事件运行一次，返回本次产生的衍生事件。
type Operator interface {
	Name() string
	Process(evt event.Event) []event.Event
}

// Engine 按注册顺序驱动一组操作符，并把衍生事件路由到总线。
type Engine struct {
	bus *event.Bus
	ops []Operator
}

// NewEngine 创建引擎。bus 可为 nil（纯测试场景）。
func NewEngine(bus *event.Bus) *Engine {
	return &Engine{bus: bus}
}

// Register 追加操作符，运行顺序即注册顺序。
func (e *Engine) Register(ops ...Operator) {
	for _, op := range ops {
		if op != nil {
			e.ops = append(e.ops, op)
		}
	}
}

// Ingest 让每个操作符处理一条事件。缺失 Key 归入默认分区，缺失时间戳
// 回退为当前时间；两者都不视为错误，保持流水不中断。
func (e *Engine) Ingest(evt event.Event) {
	if evt.TS <= 0 {
		evt.TS = time.Now().Unix()
	}
	for _, op := range e.ops {
		for _, out := range op.Process(evt) {
			if e.bus != nil {
				e.bus.Publish(out)
			}
		}
	}
}

// Bus 返回引擎挂接的总线。
func (e *Engine) Bus() *event.Bus {
	return e.bus
}
