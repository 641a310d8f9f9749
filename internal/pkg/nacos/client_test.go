package nacos

import "testing"

func TestParseServerConfigs(t *testing.T) {
	configs, err := ParseServerConfigs("10.0.0.1:8848, 10.0.0.2:8849,")
	if err != nil {
		t.Fatalf("ParseServerConfigs: %v", err)
	}
	if len(configs) != 2 || configs[0].IpAddr != "10.0.0.1" || configs[1].Port != 8849 {
		t.Errorf("configs = %+v", configs)
	}

	for _, bad := range []string{"", "nohost", "host:port", "a:1:2"} {
		if _, err := ParseServerConfigs(bad); err == nil {
			t.Errorf("ParseServerConfigs(%q) should fail", bad)
		}
	}
}
