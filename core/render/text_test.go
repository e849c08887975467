package render

import (
	"testing"

	"github.com/fayinlab/bodhicanon/core/gaiji"
)

func TestPlainText(t *testing.T) {
	res := gaiji.New(map[string]gaiji.Entry{"CB00178": {NormUniChar: "刹"}})
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "markers vanish",
			in:   `<p>如是<lb ed="T" n="0001a04"/>我聞<pb ed="T" n="0001a"/><anchor xml:id="x"/></p>`,
			want: "如是我聞",
		},
		{
			name: "apparatus keeps accepted reading",
			in:   `<p>告諸<app><lem wit="【大】">比丘</lem><rdg wit="【宋】">苾芻</rdg></app>眾</p>`,
			want: "告諸比丘眾",
		},
		{
			name: "normalization pair keeps corrected form",
			in:   `<p><choice><corr>法</corr><sic>灋</sic></choice>輪</p>`,
			want: "法輪",
		},
		{
			name: "gaiji resolved",
			in:   `<p><g ref="#CB00178"/>土</p>`,
			want: "刹土",
		},
		{
			name: "spacing preserved as fullwidth",
			in:   `<p>天上<space quantity="2"/>天下<caesura/>獨尊</p>`,
			want: "天上　　天下　獨尊",
		},
		{
			name: "annotation text included",
			in:   `<p>文<note>注</note></p>`,
			want: "文注",
		},
		{
			name: "metadata subtrees skipped",
			in:   `<p>文<milestone unit="juan" n="1"/></p>`,
			want: "文",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := parseBody(t, tt.in)
			if got := PlainText(body, res); got != tt.want {
				t.Errorf("PlainText = %q, want %q", got, tt.want)
			}
		})
	}

	if got := PlainText(nil, res); got != "" {
		t.Errorf("PlainText(nil) = %q, want empty", got)
	}
}
