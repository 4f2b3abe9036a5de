package conf

type Bootstrap struct {
	Server   *Server   `json:"server"`
	Data     *Data     `json:"data"`
	Auth     *Auth     `json:"auth"`
	Briefing *Briefing `json:"briefing"`
}

type Auth struct {
	// WebhookKey 非空时 /webhook 需要 HS256 Bearer token
	WebhookKey string `json:"webhook_key"`
}

type Server struct {
	Http *HTTP `json:"http"`
	// Grpc 可选，只暴露标准健康检查服务
	Grpc *GRPC `json:"grpc"`
}

type HTTP struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

type GRPC struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

type Data struct {
	Database *Database `json:"database"`
}

type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Briefing 管线配置。ConfigFile 指向完整的管线 yaml（采集源、过滤、抽取参数），
// 其余字段覆盖其中的同名配置
type Briefing struct {
	ConfigFile string    `json:"config_file"`
	Llm        *LLM      `json:"llm"`
	Output     *Output   `json:"output"`
	Notion     *Notion   `json:"notion"`
	Pipeline   *Pipeline `json:"pipeline"`
	Schedule   *Schedule `json:"schedule"`
	Log        *Log      `json:"log"`
}

type LLM struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
}

type Output struct {
	Store string `json:"store"`
	Dir   string `json:"dir"`
}

type Notion struct {
	Token      string `json:"token"`
	DatabaseId string `json:"database_id"`
}

type Pipeline struct {
	Cooldown   string `json:"cooldown"`
	RunTimeout string `json:"run_timeout"`
}

type Schedule struct {
	Enabled  bool   `json:"enabled"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}
