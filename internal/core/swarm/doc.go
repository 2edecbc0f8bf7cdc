// Package swarm 实现连接群驱动
//
// Swarm 是节点的事件循环：它持有监听器、进行中的连接升级、
// 活跃连接（每条连接一个 SharedMuxer）以及一个 Behaviour，
// 并把三者之间的通知串起来。
//
// # 轮询模型
//
// Poll 推进全部状态一次，从不阻塞：
//   - 取出监听器上的入站连接，登记其升级
//   - 收取完成的升级，建立连接并调用 Behaviour.InjectConnected
//   - 接受每条连接上的入站子流，用 Behaviour.ListenProtocol 给出的升级协商
//   - 把完成的子流升级交给 Behaviour
//   - 执行 Behaviour 产生的动作（OpenSubstream、DialAddress、DialPeer），
//     GenerateEvent 作为 EventBehaviour 交付
//
// Next 在 Poll 返回 Pending 时等待共享的唤醒信号（多路复用器、监听器、
// 升级和 Handler 定时器都会触发它），同时按 PollInterval 兜底轮询。
//
// # 快速开始
//
//	s, err := swarm.New[identify.Event](localPeer, tpt, behaviour)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if _, err := s.Listen(addr); err != nil {
//	    return err
//	}
//	return s.Run(ctx, func(ev swarm.Event[identify.Event]) {
//	    // 处理事件
//	})
//
// # 指标
//
// 通过 WithRegisterer 注册 Prometheus 指标：活跃连接数、
// 按方向统计的子流数和按阶段统计的升级失败数。
package swarm
