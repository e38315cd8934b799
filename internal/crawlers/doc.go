// Package crawlers 提供静态和动态两种列表页抓取策略
//
// # 概述
//
// 两种策略共用同一套字段提取规则 (Extractor): 先定位列表容器,再在每个列表项内
// 解析标题、链接、正文、作者、日期和缩略图。单个列表项失败只会被跳过。
//
// # 核心组件
//
// ## StaticStrategy
//
// 基于Colly的HTTP抓取,使用浏览器风格的请求头和轮换User-Agent,
// 403/429和网络错误按指数退避重试,启用分页时按页码参数依次抓取。
//
//	s := NewStaticStrategy(DefaultPolicy(), headerProvider, &Extractor{})
//	result := s.Fetch(ctx, target)
//
// ## DynamicStrategy
//
// 基于go-rod的无头浏览器抓取。每次爬取启动独立会话,无论成功或失败都会关闭。
// 页面加载后等待 readyState 和列表项出现,再滚动触发懒加载。
//
//	d := NewDynamicStrategy(DefaultDynamicConfig(), NewRodSessionFactory(rodConfig), &Extractor{})
//	if err := d.Probe(ctx); err != nil {
//	    // 之后的动态爬取会直接失败并带上原因
//	}
//
// ## ResourceGuard
//
// 启动浏览器前通过gopsutil检查可用内存和CPU负载。
//
// # 等待
//
// 所有等待(请求间隔、重试退避、轮询、滚动停顿)都经过 Sleeper,测试中可替换为 NoSleep。
package crawlers
